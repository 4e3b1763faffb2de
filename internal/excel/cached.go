package excel

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/printwerk/labelpress/internal/cache"
	"github.com/printwerk/labelpress/internal/domain"
)

// NewCachedLoader wraps LoadReference with a cache so repeated jobs over
// the same workbook skip re-parsing. The cache key carries the file's
// modification time, so an updated workbook invalidates itself. Cache
// failures fall through to a direct load.
func NewCachedLoader(c cache.Cache) func(ctx context.Context, path string) ([]*domain.Article, error) {
	return func(ctx context.Context, path string) ([]*domain.Article, error) {
		if c == nil {
			return LoadReference(path)
		}

		key := referenceKey(path)
		if cached, err := c.Get(ctx, key); err == nil && cached != nil {
			var articles []*domain.Article
			if err := json.Unmarshal(cached, &articles); err == nil {
				return articles, nil
			}
			log.Printf("excel: corrupt cache entry for %s, reloading", path)
		}

		articles, err := LoadReference(path)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(articles); err == nil {
			if err := c.Set(ctx, key, data, cache.TTLReference); err != nil {
				log.Printf("excel: caching reference %s failed: %v", path, err)
			}
		}
		return articles, nil
	}
}

func referenceKey(path string) string {
	mtime := int64(0)
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().UnixNano()
	}
	return fmt.Sprintf("%s:%s:%d", cache.KeyPrefixReference, path, mtime)
}
