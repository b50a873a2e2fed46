package refresh

import (
	"context"
	"path"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/viant/afs"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"masader/internal/cache"
	"masader/internal/engine"
	"masader/internal/errors"
	"masader/internal/logger"
	"masader/internal/models"
)

// SourceJob downloads the catalog and tag taxonomy from two URLs (any scheme
// afs supports: file, mem, http, s3, gs ...) and writes them into the cache
// store. The tags document may be JSON or YAML; it is stored as JSON.
type SourceJob struct {
	FS         afs.Service
	Cache      cache.Store
	MasaderURL string
	TagsURL    string
	MasaderKey string
	TagsKey    string
	Logger     logger.Logger
}

func NewSourceJob(c cache.Store, masaderURL, tagsURL string, l logger.Logger) *SourceJob {
	if l == nil {
		l = logger.NopLogger
	}
	return &SourceJob{
		FS:         afs.New(),
		Cache:      c,
		MasaderURL: masaderURL,
		TagsURL:    tagsURL,
		MasaderKey: engine.DefaultMasaderKey,
		TagsKey:    engine.DefaultTagsKey,
		Logger:     l,
	}
}

// Run writes both keys in one MSet, and only after both documents decoded
// into a valid snapshot.
func (j *SourceJob) Run(ctx context.Context) error {
	start := time.Now()

	var masader, tags []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		masader, err = j.FS.DownloadWithURL(gctx, j.MasaderURL)
		return errors.Wrapf(err, "downloading %s", j.MasaderURL)
	})
	g.Go(func() (err error) {
		tags, err = j.FS.DownloadWithURL(gctx, j.TagsURL)
		return errors.Wrapf(err, "downloading %s", j.TagsURL)
	})
	if err := g.Wait(); err != nil {
		return errors.WithCode(err, errors.ErrRefresh, "fetching source")
	}

	if isYAML(j.TagsURL) {
		converted, err := YAMLTagsToJSON(tags)
		if err != nil {
			return errors.WithCode(err, errors.ErrRefresh, "converting tags")
		}
		tags = converted
	}

	snap, err := engine.Decode(masader, tags)
	if err != nil {
		return err
	}

	err = j.Cache.MSet(ctx,
		cache.Entry{Key: j.MasaderKey, Value: masader},
		cache.Entry{Key: j.TagsKey, Value: tags},
	)
	if err != nil {
		return errors.WithCode(err, errors.ErrRefresh, "writing cache")
	}
	j.Logger.Infof("stored %d datasets and %d tag categories from source in %v", len(snap.Records), snap.Tags.Len(), time.Since(start))
	return nil
}

func isYAML(url string) bool {
	switch strings.ToLower(path.Ext(url)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// YAMLTagsToJSON converts a YAML mapping of category to value list into the
// JSON document stored under the tags key, keeping the category order.
func YAMLTagsToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.Errorf("empty tags document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: tags must be a mapping", root.Line)
	}

	var tags models.Tags
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, list := root.Content[i], root.Content[i+1]
		if list.Kind != yaml.SequenceNode {
			return nil, errors.Errorf("line %d: tag %q must be a list", list.Line, key.Value)
		}
		values := make([]models.Value, 0, len(list.Content))
		for _, item := range list.Content {
			v, err := scalarValue(item)
			if err != nil {
				return nil, errors.Wrapf(err, "tag %q", key.Value)
			}
			values = append(values, v)
		}
		tags.Set(key.Value, values)
	}
	return json.Marshal(tags)
}

func scalarValue(n *yaml.Node) (models.Value, error) {
	if n.Kind != yaml.ScalarNode {
		return models.Value{}, errors.Errorf("line %d: expected a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return models.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return models.Value{}, err
		}
		return models.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return models.Value{}, err
		}
		return models.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return models.Value{}, err
		}
		return models.Float(f), nil
	}
	return models.String(n.Value), nil
}
