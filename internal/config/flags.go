package config

import (
	"reflect"
	"strings"

	"github.com/spf13/pflag"
)

// flagSpec describes one command-line flag derived from a Config field
type flagSpec struct {
	key   string // koanf path, e.g. "ticket_store.redis.addr"
	name  string // flag name, e.g. "ticket-store-redis-addr"
	usage string
	kind  reflect.Kind
	slice bool // []string fields become repeatable string-slice flags
}

// collectFlags walks Config using its koanf and usage tags. Nested structs
// contribute prefixed keys; struct slices and maps have no flag form.
func collectFlags() []flagSpec {
	var specs []flagSpec
	collectStruct(reflect.TypeOf(Config{}), "", &specs)
	return specs
}

func collectStruct(t reflect.Type, prefix string, specs *[]flagSpec) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		if strings.Contains(tag, "squash") {
			collectStruct(field.Type, prefix, specs)
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		switch {
		case ft.Kind() == reflect.Struct:
			collectStruct(ft, key, specs)
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.String:
			*specs = append(*specs, flagSpec{key: key, name: flagNameFor(key), usage: field.Tag.Get("usage"), kind: reflect.String, slice: true})
		case isScalarKind(ft.Kind()):
			*specs = append(*specs, flagSpec{key: key, name: flagNameFor(key), usage: field.Tag.Get("usage"), kind: ft.Kind()})
		}
	}
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.String, reflect.Bool, reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// flagNameFor turns "ticket_store.redis.addr" into "ticket-store-redis-addr"
func flagNameFor(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

// RegisterFlags adds one flag per configurable field to flagSet. Flags that
// already exist are left alone so the command can be built more than once.
func RegisterFlags(flagSet *pflag.FlagSet) {
	for _, f := range collectFlags() {
		if flagSet.Lookup(f.name) != nil {
			continue
		}
		switch {
		case f.slice:
			flagSet.StringSlice(f.name, nil, f.usage)
		case f.kind == reflect.String:
			flagSet.String(f.name, "", f.usage)
		case f.kind == reflect.Bool:
			flagSet.Bool(f.name, false, f.usage)
		case f.kind == reflect.Float32 || f.kind == reflect.Float64:
			flagSet.Float64(f.name, 0, f.usage)
		case f.kind >= reflect.Uint && f.kind <= reflect.Uint64:
			flagSet.Uint(f.name, 0, f.usage)
		default:
			flagSet.Int(f.name, 0, f.usage)
		}
	}
}

// FlagKeys maps flag names to the koanf keys they override
func FlagKeys() map[string]string {
	keys := make(map[string]string)
	for _, f := range collectFlags() {
		keys[f.name] = f.key
	}
	return keys
}
