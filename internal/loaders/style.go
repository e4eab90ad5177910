package loaders

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const styleRuntime = `if (typeof document !== "undefined") {
  var style = document.createElement("style");
  style.setAttribute("data-assetpack", %s);
  style.appendChild(document.createTextNode(css));
  document.head.appendChild(style);
}
export default css;
`

var (
	cssImportPattern = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*)?(?:"([^"]*)"|'([^']*)'|([^\s"');]+))\s*\)?[^;]*;`)
	cssURLPattern    = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^\s"')]+))\s*\)`)
)

// styleLoader injects the stylesheet produced by css-loader into the page
// at runtime instead of emitting a separate .css file. Local url() references
// become imports, so the rules decide how fonts and images are emitted, and
// local @import rules become imports of the referenced stylesheets.
type styleLoader struct{}

func (styleLoader) Name() string { return "style-loader" }

func (styleLoader) Apply(src *Source) error {
	switch src.Loader {
	case api.LoaderCSS:
	case api.LoaderLocalCSS:
		return fmt.Errorf("%w: css modules are not supported with style-loader", ErrLoaderOrder)
	default:
		return fmt.Errorf("%w: style-loader must follow css-loader", ErrLoaderOrder)
	}

	id, err := json.Marshal(src.Path)
	if err != nil {
		return err
	}

	var module strings.Builder
	css := cssImportPattern.ReplaceAllStringFunc(src.Contents, func(match string) string {
		ref := firstGroup(cssImportPattern.FindStringSubmatch(match))
		if !isLocalRef(ref) {
			return match
		}
		fmt.Fprintf(&module, "import %s;\n", strconv.Quote(importPath(ref)))
		return ""
	})

	expr, err := cssExpression(&module, css)
	if err != nil {
		return err
	}

	fmt.Fprintf(&module, "var css = %s;\n", expr)
	fmt.Fprintf(&module, styleRuntime, id)

	src.Contents = module.String()
	src.Loader = api.LoaderJS
	return nil
}

// cssExpression turns css into a JS string expression with every local url()
// replaced by the default export of an import of the referenced file.
func cssExpression(imports *strings.Builder, css string) (string, error) {
	var parts []string
	literal := func(s string) error {
		if s == "" {
			return nil
		}
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
		return nil
	}

	ids := map[string]string{}
	last := 0
	for _, loc := range cssURLPattern.FindAllStringSubmatchIndex(css, -1) {
		match := css[loc[0]:loc[1]]
		ref := firstGroup(cssURLPattern.FindStringSubmatch(match))
		if !isLocalRef(ref) {
			continue
		}

		file, suffix := splitSuffix(ref)
		ident, ok := ids[file]
		if !ok {
			ident = fmt.Sprintf("__assetpack_url_%d", len(ids))
			ids[file] = ident
			fmt.Fprintf(imports, "import %s from %s;\n", ident, strconv.Quote(importPath(file)))
		}

		if err := literal(css[last:loc[0]] + `url("`); err != nil {
			return "", err
		}
		parts = append(parts, ident)
		if err := literal(suffix + `")`); err != nil {
			return "", err
		}
		last = loc[1]
	}
	if err := literal(css[last:]); err != nil {
		return "", err
	}

	if len(parts) == 0 {
		return `""`, nil
	}
	return strings.Join(parts, " + "), nil
}

func firstGroup(groups []string) string {
	for _, g := range groups[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// isLocalRef reports whether ref names a file in the source tree rather than
// a data URI, an absolute URL, a fragment or a server path.
func isLocalRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "/") {
		return false
	}
	if i := strings.Index(ref, ":"); i > 0 && !strings.ContainsAny(ref[:i], "/.?#") {
		return false
	}
	return true
}

// importPath maps a CSS reference onto a module specifier: "~pkg/x" refers to
// a package, anything else is relative to the stylesheet.
func importPath(ref string) string {
	switch {
	case strings.HasPrefix(ref, "~"):
		return ref[1:]
	case strings.HasPrefix(ref, "./"), strings.HasPrefix(ref, "../"):
		return ref
	}
	return "./" + ref
}

// splitSuffix separates "font.eot?#iefix" into the file and the query or
// fragment kept on the emitted URL.
func splitSuffix(ref string) (file, suffix string) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}
