package render

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
	"guest-messaging/internal/common/utils"
)

// Config tunes the renderer's cache and limits.
type Config struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	MaxTemplateSize int
}

// DefaultConfig returns the renderer defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        5 * time.Minute,
		CacheMaxEntries: 1000,
		MaxTemplateSize: 10000,
	}
}

// Renderer renders message templates against runtime context maps.
// Rendering is read-only over the context; the only shared mutable
// state is the internal cache, which is safe for concurrent use.
type Renderer struct {
	config Config
	cache  *renderCache
	logger logging.Logger
}

// NewRenderer creates a renderer with the given configuration.
func NewRenderer(config Config, logger logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.CacheMaxEntries <= 0 {
		config.CacheMaxEntries = DefaultConfig().CacheMaxEntries
	}
	if config.MaxTemplateSize <= 0 {
		config.MaxTemplateSize = DefaultConfig().MaxTemplateSize
	}
	return &Renderer{
		config: config,
		cache:  newRenderCache(config.CacheMaxEntries, config.CacheTTL),
		logger: logger,
	}
}

var (
	reInlineSpace = regexp.MustCompile(`[ \t]+`)
	reLineTrail   = regexp.MustCompile(`[ \t]+\n`)
	reBlankRuns   = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// Render renders a template against a context, memoizing results by
// content hash. Referencing an undefined variable or using a filter
// outside the whitelist is a render error.
func (r *Renderer) Render(templateText string, ctx map[string]interface{}) (string, error) {
	if len(templateText) > r.config.MaxTemplateSize {
		return "", errors.RenderError(
			fmt.Sprintf("template size %d exceeds maximum %d", len(templateText), r.config.MaxTemplateSize), nil)
	}

	ctx = withDefaults(ctx)

	key := cacheKey(templateText, ctx)
	if cached, ok := r.cache.get(key); ok {
		return cached, nil
	}

	nodes, err := parse(templateText)
	if err != nil {
		return "", err
	}

	rendered, err := execute(nodes, ctx)
	if err != nil {
		return "", err
	}

	rendered = postProcess(rendered)
	r.cache.set(key, rendered)
	return rendered, nil
}

// ClearCache drops all memoized renders, e.g. after a template edit.
func (r *Renderer) ClearCache() {
	r.cache.clear()
}

// CacheStats reports cache hit/miss counters and the entry count.
func (r *Renderer) CacheStats() CacheStats {
	return r.cache.stats()
}

// withDefaults derives the context actually rendered: missing guest and
// hotel maps become empty maps and guest_name falls back to "Guest" so
// partial context never crashes rendering. The caller's map is not
// mutated.
func withDefaults(ctx map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(ctx)+3)
	for k, v := range ctx {
		out[k] = v
	}

	if _, ok := out["guest"]; !ok {
		out["guest"] = map[string]interface{}{}
	}
	if _, ok := out["hotel"]; !ok {
		out["hotel"] = map[string]interface{}{}
	}
	if name, ok := out["guest_name"]; !ok || name == nil || name == "" {
		out["guest_name"] = "Guest"
	}
	return out
}

// execute walks the node tree producing output text.
func execute(nodes []node, ctx map[string]interface{}) (string, error) {
	var b []byte

	for _, n := range nodes {
		switch nd := n.(type) {
		case textNode:
			b = append(b, string(nd)...)

		case *varNode:
			value, found := utils.LookupPath(ctx, nd.path)
			if !found {
				return "", errors.RenderError(fmt.Sprintf("undefined variable %q", nd.path), nil)
			}

			text, err := applyFilters(value, nd.filters)
			if err != nil {
				return "", err
			}
			b = append(b, text...)

		case *ifNode:
			branch := nd.els
			if truthy(ctx, nd.cond) {
				branch = nd.then
			}
			text, err := execute(branch, ctx)
			if err != nil {
				return "", err
			}
			b = append(b, text...)

		default:
			return "", errors.InternalError(fmt.Sprintf("unknown template node %T", n), nil)
		}
	}
	return string(b), nil
}

func applyFilters(value interface{}, filters []filterCall) (string, error) {
	if len(filters) == 0 {
		if value == nil {
			return "", nil
		}
		return fmt.Sprintf("%v", value), nil
	}

	var current interface{} = value
	for _, call := range filters {
		fn, ok := filterWhitelist[call.name]
		if !ok {
			return "", errors.RenderError(fmt.Sprintf("unknown filter %q", call.name), nil)
		}
		text, err := fn(current, call.arg)
		if err != nil {
			return "", err
		}
		current = text
	}
	return fmt.Sprintf("%v", current), nil
}

// truthy resolves an if condition: present and not false, zero or empty.
func truthy(ctx map[string]interface{}, path string) bool {
	value, found := utils.LookupPath(ctx, path)
	if !found || value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case map[string]interface{}:
		return len(v) > 0
	case []interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// postProcess collapses repeated inline whitespace and runs of blank
// lines, then trims the result.
func postProcess(text string) string {
	text = reInlineSpace.ReplaceAllString(text, " ")
	text = reLineTrail.ReplaceAllString(text, "\n")
	text = reBlankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// cacheKey derives the memoization key from the template content hash
// and the canonicalized context hash.
func cacheKey(templateText string, ctx map[string]interface{}) string {
	templateHash := md5.Sum([]byte(templateText))
	contextHash := md5.Sum(utils.CanonicalJSON(ctx))
	return fmt.Sprintf("%x:%x", templateHash, contextHash)
}
