package server

import (
	"context"
	"fmt"
	"strings"
)

// ResourceContent is the result of reading a resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourceReader reads a resource at a concrete URI.
type ResourceReader func(ctx context.Context, uri string) (ResourceContent, error)

// Resource is a registered, readable resource.
type Resource struct {
	uriTemplate string
	name        string
	description string
	mimeType    string
	reader      ResourceReader
}

// ResourceInfo is metadata about a registered resource.
type ResourceInfo struct {
	URITemplate string
	Name        string
	Description string
	MimeType    string
}

// Read invokes the resource reader.
func (r *Resource) Read(ctx context.Context, uri string) (ResourceContent, error) {
	if r.reader == nil {
		return ResourceContent{}, fmt.Errorf("resource %q has no reader", r.uriTemplate)
	}
	return r.reader(ctx, uri)
}

// ResourceBuilder builds and registers a resource.
type ResourceBuilder struct {
	resource *Resource
	server   *Server
}

// Name sets the resource's display name.
func (b *ResourceBuilder) Name(name string) *ResourceBuilder {
	b.resource.name = name
	return b
}

// Description sets the resource's description.
func (b *ResourceBuilder) Description(desc string) *ResourceBuilder {
	b.resource.description = desc
	return b
}

// MimeType sets the resource's MIME type.
func (b *ResourceBuilder) MimeType(mimeType string) *ResourceBuilder {
	b.resource.mimeType = mimeType
	return b
}

// Reader sets the read function and registers the resource.
func (b *ResourceBuilder) Reader(reader ResourceReader) *Resource {
	b.resource.reader = reader
	b.server.registerResource(b.resource)
	return b.resource
}

// matchURI reports whether a concrete URI matches a template. Template
// segments of the form {name} match any single non-empty segment.
func matchURI(template, uri string) bool {
	if template == uri {
		return true
	}

	tSegs := strings.Split(template, "/")
	uSegs := strings.Split(uri, "/")
	if len(tSegs) != len(uSegs) {
		return false
	}
	for i, t := range tSegs {
		if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
			if uSegs[i] == "" {
				return false
			}
			continue
		}
		if t != uSegs[i] {
			return false
		}
	}
	return true
}
