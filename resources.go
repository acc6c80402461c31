package mcpcore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/elnormous/contenttype"
)

// DefaultContentType is used for resources that declare none.
const DefaultContentType = "text/plain"

// ResourceResolver produces the text of the resource at uri. For prefix
// resources uri is the full requested URI.
type ResourceResolver func(ctx context.Context, uri string) (string, error)

// ResourceSpec declares a resource. With Prefix set, URI is a prefix such as
// "file://" and the resource answers every URI that starts with it.
type ResourceSpec struct {
	URI         string
	Prefix      bool
	Name        string
	Description string
	ContentType string
	Resolver    ResourceResolver
}

// ResourceRegistry is an ordered catalog of resources.
type ResourceRegistry struct {
	specs []ResourceSpec
	exact map[string]int
	// prefixes indexes prefix resources, longest first.
	prefixes []int
}

// NewResourceRegistry returns an empty registry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{exact: make(map[string]int)}
}

// Register adds spec to the registry. It fails with *DuplicateNameError if
// the URI is already registered, as an exact URI or as a prefix.
func (r *ResourceRegistry) Register(spec ResourceSpec) error {
	if spec.URI == "" {
		return errors.New("resource URI required")
	}
	if spec.Resolver == nil {
		return fmt.Errorf("resource %q: resolver required", spec.URI)
	}
	ct, err := normalizeContentType(spec.ContentType)
	if err != nil {
		return fmt.Errorf("resource %q: %w", spec.URI, err)
	}
	spec.ContentType = ct
	if spec.Name == "" {
		spec.Name = spec.URI
	}

	if _, ok := r.exact[spec.URI]; ok {
		return &DuplicateNameError{Kind: "resource", Name: spec.URI}
	}
	for _, i := range r.prefixes {
		if r.specs[i].URI == spec.URI {
			return &DuplicateNameError{Kind: "resource prefix", Name: spec.URI}
		}
	}

	i := len(r.specs)
	r.specs = append(r.specs, spec)
	if spec.Prefix {
		r.prefixes = append(r.prefixes, i)
		sort.SliceStable(r.prefixes, func(a, b int) bool {
			return len(r.specs[r.prefixes[a]].URI) > len(r.specs[r.prefixes[b]].URI)
		})
	} else {
		r.exact[spec.URI] = i
	}
	return nil
}

// List returns the resources in registration order.
func (r *ResourceRegistry) List() []ResourceSpec {
	return append([]ResourceSpec(nil), r.specs...)
}

// Resolve finds the resource answering uri: an exact match if one exists,
// otherwise the longest registered prefix of uri. It returns *NotFoundError
// when nothing matches.
func (r *ResourceRegistry) Resolve(uri string) (ResourceSpec, error) {
	if i, ok := r.exact[uri]; ok {
		return r.specs[i], nil
	}
	for _, i := range r.prefixes {
		if strings.HasPrefix(uri, r.specs[i].URI) {
			return r.specs[i], nil
		}
	}
	return ResourceSpec{}, &NotFoundError{Kind: "resource", Name: uri}
}

// Len reports the number of registered resources.
func (r *ResourceRegistry) Len() int { return len(r.specs) }

func (r *ResourceRegistry) clone() *ResourceRegistry {
	c := &ResourceRegistry{
		specs:    append([]ResourceSpec(nil), r.specs...),
		exact:    make(map[string]int, len(r.exact)),
		prefixes: append([]int(nil), r.prefixes...),
	}
	for k, v := range r.exact {
		c.exact[k] = v
	}
	return c
}

// normalizeContentType lower-cases and canonicalizes a media type, so
// "Text/Plain; charset=UTF-8" becomes "text/plain;charset=UTF-8".
func normalizeContentType(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultContentType, nil
	}
	mt := contenttype.NewMediaType(s)
	if mt.Type == "" || mt.Subtype == "" {
		return "", fmt.Errorf("invalid content type %q", s)
	}
	out := strings.ToLower(mt.Type + "/" + mt.Subtype)
	keys := make([]string, 0, len(mt.Parameters))
	for k := range mt.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out += ";" + strings.ToLower(k) + "=" + mt.Parameters[k]
	}
	return out, nil
}
