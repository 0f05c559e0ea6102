package resolver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ben-ranford/noderesolve/internal/fsprobe"
)

const manifestName = "package.json"

// PackageJSON is a parsed package manifest. Field access follows JavaScript
// truthiness: empty strings, false and null read as absent.
type PackageJSON struct {
	Dir    string
	fields *jsonObject
}

func (p *PackageJSON) Name() string {
	return p.StringField("name")
}

func (p *PackageJSON) Type() string {
	return p.StringField("type")
}

// StringField returns a string-valued field, or "" when it is missing or not a string.
func (p *PackageJSON) StringField(name string) string {
	value, _ := p.fields.get(name)
	text, _ := value.(string)
	return text
}

// Field returns a truthy field value.
func (p *PackageJSON) Field(name string) (any, bool) {
	value, ok := p.fields.get(name)
	if !ok || !truthy(value) {
		return nil, false
	}
	return value, true
}

func (p *PackageJSON) Exports() (any, bool) {
	return p.Field("exports")
}

func (p *PackageJSON) Imports() (any, bool) {
	return p.Field("imports")
}

func (p *PackageJSON) Browser() (any, bool) {
	return p.Field("browser")
}

// SideEffects returns the sideEffects declaration. Unlike other fields an
// explicit false is present.
func (p *PackageJSON) SideEffects() (any, bool) {
	value, ok := p.fields.get("sideEffects")
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// IsOptionalPeer reports whether name is declared optional in peerDependenciesMeta.
func (p *PackageJSON) IsOptionalPeer(name string) bool {
	metaValue, _ := p.fields.get("peerDependenciesMeta")
	meta, ok := metaValue.(*jsonObject)
	if !ok {
		return false
	}
	entryValue, _ := meta.get(name)
	entry, ok := entryValue.(*jsonObject)
	if !ok {
		return false
	}
	optionalValue, _ := entry.get("optional")
	optional, _ := optionalValue.(bool)
	return optional
}

func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case float64:
		return typed != 0
	default:
		return true
	}
}

// ReadPackageJSON reads dir/package.json. A missing manifest returns nil
// with no error; a manifest that is not a JSON object is an *InvalidError.
func ReadPackageJSON(dir string) (*PackageJSON, error) {
	data, ok := fsprobe.ReadFile(filepath.Join(dir, manifestName))
	if !ok || len(data) == 0 {
		return nil, nil
	}

	parsed, err := decodeOrderedJSON(data)
	if err != nil {
		return nil, invalidf("failed to parse package.json of %s: %v", quote(dir), err)
	}
	fields, ok := parsed.(*jsonObject)
	if !ok {
		return nil, invalidf("failed to parse package.json of %s: was not object", quote(dir))
	}
	return &PackageJSON{Dir: dir, fields: fields}, nil
}

// LookupPackageScope returns the nearest ancestor directory of p (or p
// itself) containing a package.json. The walk stops at a node_modules
// directory, so a package inside node_modules never inherits its host's scope.
func LookupPackageScope(p string) (string, bool) {
	dir := filepath.Clean(p)
	for {
		if filepath.Base(dir) == "node_modules" {
			return "", false
		}
		if fsprobe.IsFile(filepath.Join(dir, manifestName)) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// FileFormat is the module format of a resolved file.
type FileFormat string

const (
	FormatModule   FileFormat = "module"
	FormatCommonJS FileFormat = "commonjs"
	FormatJSON     FileFormat = "json"
	FormatUnknown  FileFormat = ""
)

// DetectFileFormat reports the module format Node.js would load p as.
func DetectFileFormat(p string) FileFormat {
	switch filepath.Ext(p) {
	case ".mjs":
		return FormatModule
	case ".cjs":
		return FormatCommonJS
	case ".json":
		return FormatJSON
	case ".js":
	default:
		return FormatUnknown
	}

	scope, ok := LookupPackageScope(filepath.Dir(p))
	if !ok {
		return FormatCommonJS
	}
	pkg, err := ReadPackageJSON(scope)
	if err != nil || pkg == nil {
		return FormatCommonJS
	}
	if pkg.Type() == "module" {
		return FormatModule
	}
	return FormatCommonJS
}

// jsonObject is a decoded JSON object that remembers key order. Condition
// objects in exports maps and browser maps are matched in declaration order.
type jsonObject struct {
	keys   []string
	values map[string]any
}

func (o *jsonObject) get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	value, ok := o.values[key]
	return value, ok
}

// decodeOrderedJSON decodes data into *jsonObject, []any, string, float64,
// bool or nil. Duplicate keys keep their first position and last value.
func decodeOrderedJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	value, err := decodeOrderedValue(decoder)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, err
	}
	return value, nil
}

func decodeOrderedValue(decoder *json.Decoder) (any, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := token.(json.Delim)
	if !ok {
		return token, nil
	}

	switch delim {
	case '{':
		object := &jsonObject{values: make(map[string]any)}
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyToken)
			}
			value, err := decodeOrderedValue(decoder)
			if err != nil {
				return nil, err
			}
			if _, seen := object.values[key]; !seen {
				object.keys = append(object.keys, key)
			}
			object.values[key] = value
		}
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return object, nil
	case '[':
		items := make([]any, 0)
		for decoder.More() {
			value, err := decodeOrderedValue(decoder)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}
