// Package helpers exposes the resolver to html/template.
package helpers

import (
	"context"
	"fmt"
	"html/template"
	"path"
	"regexp"
	"strings"

	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/resolver"
	"github.com/radiofrance/imgtag/pkg/strutil"
)

const (
	LinkFuncName = "remote_image_tag_link"
	TagFuncName  = "remote_image_tag"
)

var attributeName = regexp.MustCompile(`^[A-Za-z_:][-A-Za-z0-9_:.]*$`)

// FuncMap returns the template functions resolving images with r in the given mode.
// Every call made by a template execution shares ctx.
func FuncMap(ctx context.Context, r *resolver.Resolver, mode resolver.Mode) template.FuncMap {
	return template.FuncMap{
		LinkFuncName: func(identifier string) (string, error) {
			return r.ResolveLink(ctx, mode, identifier)
		},
		TagFuncName: func(identifier string, attrs ...string) (template.HTML, error) {
			link, err := r.ResolveLink(ctx, mode, identifier)
			if err != nil {
				return "", err
			}

			return ImageTag(link, identifier, attrs...), nil
		},
	}
}

// ImageTag renders an <img> element pointing to link. attrs are "key=value" strings,
// a key without value renders as a boolean attribute, keys that are not valid attribute
// names are dropped. The alt attribute defaults to the base name of identifier without
// its extension.
func ImageTag(link, identifier string, attrs ...string) template.HTML {
	values := strutil.ConvertKVStringsToMap(attrs)
	delete(values, "src")
	if _, ok := values["alt"]; !ok {
		base := path.Base(identifier)
		values["alt"] = strings.TrimSuffix(base, path.Ext(base))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<img src="%s"`, template.HTMLEscapeString(link))
	for _, key := range strutil.SortedKeys(values) {
		if !attributeName.MatchString(key) {
			logger.Warnf("Ignoring invalid image attribute name %q", key)
			continue
		}
		b.WriteString(" " + key)
		if value := values[key]; value != "" || key == "alt" {
			fmt.Fprintf(&b, `="%s"`, template.HTMLEscapeString(value))
		}
	}
	b.WriteString(">")

	return template.HTML(b.String()) //nolint:gosec
}
