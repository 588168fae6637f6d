package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"github.com/wiser-x/exploration-plots/util"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
)

var ErrNoFiles = errors.New("no log files")

// DefaultExt is the log file extension picked up by a Loader.
const DefaultExt = ".csv"

// maxOpenFiles bounds the number of logs parsed at once.
const maxOpenFiles = 8

// Loader lists and parses log directories. Directories are local paths or
// gs://bucket/prefix URIs; the latter need Storage.
type Loader struct {
	Storage *storage.Client
	Ext     string
	// Skip drops the first Skip logs of every directory in run order.
	Skip int

	// OnFile, when set, is called once for every parsed file.
	OnFile func(ctx context.Context, dir string)
}

func (l *Loader) ext() string {
	if l.Ext == "" {
		return DefaultExt
	}
	if !strings.HasPrefix(l.Ext, ".") {
		return "." + l.Ext
	}
	return l.Ext
}

// IsRemote reports whether dir lives in Cloud Storage.
func IsRemote(dir string) bool {
	return strings.HasPrefix(dir, "gs://")
}

// Join appends elem to a local or gs:// directory.
func Join(dir string, elem ...string) string {
	if IsRemote(dir) {
		return "gs://" + path.Join(append([]string{strings.TrimPrefix(dir, "gs://")}, elem...)...)
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}

// List returns the log files directly inside dir, sorted naturally, less
// the first Skip.
func (l *Loader) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	var err error
	if IsRemote(dir) {
		names, err = l.listBucket(ctx, dir)
	} else {
		names, err = l.listLocal(dir)
	}
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w with extension %s", dir, ErrNoFiles, l.ext())
	}
	SortNatural(names)
	if l.Skip > 0 {
		if l.Skip >= len(names) {
			return nil, fmt.Errorf("%s: %w left after skipping %d of %d", dir, ErrNoFiles, l.Skip, len(names))
		}
		names = names[l.Skip:]
	}
	for i, n := range names {
		names[i] = Join(dir, n)
	}
	return names, nil
}

func (l *Loader) listLocal(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("while listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != l.ext() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (l *Loader) listBucket(ctx context.Context, dir string) ([]string, error) {
	if l.Storage == nil {
		return nil, fmt.Errorf("%s: no storage client configured", dir)
	}
	bucket, prefix, err := util.ParseBucketAndObjectFromUri(strings.TrimRight(dir, "/") + "/")
	if err != nil {
		return nil, err
	}

	var names []string
	it := l.Storage.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while listing objects in %s: %w", dir, err)
		}
		// Delimited listings report sub-directories as bare prefixes.
		if attrs.Name == "" {
			continue
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if path.Ext(name) != l.ext() {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Open returns a reader for one listed file.
func (l *Loader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !IsRemote(name) {
		return os.Open(name)
	}
	if l.Storage == nil {
		return nil, fmt.Errorf("%s: no storage client configured", name)
	}
	bucket, object, err := util.ParseBucketAndObjectFromUri(name)
	if err != nil {
		return nil, err
	}
	rc, err := l.Storage.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating reader object %s: %w", name, err)
	}
	return rc, nil
}

// ReadFile parses a single log.
func (l *Loader) ReadFile(ctx context.Context, name string) (*Table, error) {
	rc, err := l.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	log.Debugf("Reading %s", name)
	return ReadTable(name, rc)
}

// ReadDir parses every log in dir. Tables come back in List order.
func (l *Loader) ReadDir(ctx context.Context, dir string) ([]*Table, error) {
	names, err := l.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, len(names))
	eG, ctx := errgroup.WithContext(ctx)
	eG.SetLimit(maxOpenFiles)
	for i, name := range names {
		i, name := i, name
		eG.Go(func() error {
			t, err := l.ReadFile(ctx, name)
			if err != nil {
				return err
			}
			if t.Len() == 0 {
				log.Warnf("%s has a header but no rows", name)
			}
			tables[i] = t
			if l.OnFile != nil {
				l.OnFile(ctx, dir)
			}
			return nil
		})
	}
	if err := eG.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// ReadTrials parses dir and pairs timeCol/valueCol of every file. Files
// without rows are dropped.
func (l *Loader) ReadTrials(ctx context.Context, dir, timeCol, valueCol string) ([]Trial, error) {
	tables, err := l.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	trials := make([]Trial, 0, len(tables))
	for _, t := range tables {
		if t.Len() == 0 {
			continue
		}
		tr, err := TrialFromTable(t, timeCol, valueCol)
		if err != nil {
			return nil, err
		}
		trials = append(trials, tr)
	}
	if len(trials) == 0 {
		return nil, fmt.Errorf("%s: %w containing data", dir, ErrNoFiles)
	}
	return trials, nil
}

var trailingNumberRe = regexp.MustCompile(`(\d+)\D*$`)

// TrailingNumber extracts the run number at the end of a log name, e.g. 12
// for "run_12.csv". ok is false when the name carries no number.
func TrailingNumber(name string) (n int, ok bool) {
	base := path.Base(filepath.ToSlash(name))
	base = strings.TrimSuffix(base, path.Ext(base))
	m := trailingNumberRe.FindStringSubmatch(base)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortNatural orders names by trailing run number, numbered names first,
// ties broken lexically.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, oki := TrailingNumber(names[i])
		nj, okj := TrailingNumber(names[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		}
		return names[i] < names[j]
	})
}
