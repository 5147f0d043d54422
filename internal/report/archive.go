package report

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/koustreak/dbkit/internal/filestore"
	"github.com/koustreak/dbkit/internal/logger"
)

const contentTypeJSON = "application/json"

// Archiver stores JSON reports in one bucket under a key prefix.
type Archiver struct {
	store  filestore.Store
	bucket string
	prefix string
	log    logger.Sink
}

func NewArchiver(store filestore.Store, bucket, prefix string, log logger.Sink) *Archiver {
	if log == nil {
		log = logger.Nop()
	}
	return &Archiver{store: store, bucket: bucket, prefix: prefix, log: log}
}

// Init creates the bucket if needed.
func (a *Archiver) Init(ctx context.Context) error {
	return a.store.EnsureBucket(ctx, a.bucket)
}

// Key is where r is stored: <prefix>/YYYY/MM/DD/<HHMMSS>-<id>.json
func (a *Archiver) Key(r *Report) string {
	ts := r.StartedAt.UTC()
	return path.Join(a.prefix, ts.Format("2006/01/02"), ts.Format("150405")+"-"+r.ID+".json")
}

// Save uploads r and returns its key.
func (a *Archiver) Save(ctx context.Context, r *Report) (string, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, r); err != nil {
		return "", err
	}

	key := a.Key(r)
	_, err := a.store.PutObject(ctx, a.bucket, key, &buf, int64(buf.Len()), filestore.PutOptions{
		ContentType: contentTypeJSON,
		Metadata: map[string]string{
			"all-valid": strconv.FormatBool(r.Result != nil && r.Result.AllValid),
			"run-id":    r.ID,
		},
	})
	if err != nil {
		return "", err
	}
	a.log.Infof("archived validation report %s to %s/%s", r.ID, a.bucket, key)
	return key, nil
}

// Load fetches and decodes the report at key.
func (a *Archiver) Load(ctx context.Context, key string) (*Report, error) {
	obj, err := a.store.GetObject(ctx, a.bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return Decode(obj)
}

// List returns archived reports newest first, at most limit when limit > 0.
func (a *Archiver) List(ctx context.Context, limit int) ([]filestore.ObjectInfo, error) {
	prefix := a.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := a.store.ListObjects(ctx, a.bucket, filestore.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, err
	}

	reports := objects[:0]
	for _, o := range objects {
		if strings.HasSuffix(o.Key, ".json") {
			reports = append(reports, o)
		}
	}
	// keys embed the run time, so key order is run order
	sort.Slice(reports, func(i, j int) bool { return reports[i].Key > reports[j].Key })
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
