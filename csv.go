package main

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type csvHeaderStructMapping struct {
	header    string // key in CSV header
	structTag string // borrow JSON struct tag for CSV
}

type csvSchema struct {
	keys  map[int]csvHeaderStructMapping
	delim string
}

func (csv csvSchema) header() []byte {
	var buf = new(bytes.Buffer)
	for i := 0; i < len(csv.keys); i++ {
		_, _ = buf.WriteString(csv.keys[i].header)
		if i < len(csv.keys)-1 {
			_, _ = buf.WriteString(csv.delim)
		}
	}
	return buf.Bytes()
}

var (
	// ErrUnsupportedType is returned when a type is not supported during CSV reflection.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrNilPointer is returned when a pointer is nil during CSV reflection.
	ErrNilPointer = errors.New("nil pointer")
)

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func (csv csvSchema) parse(in any) ([]byte, error) {
	var buf = new(bytes.Buffer)
	write := func(s string) { _, _ = buf.WriteString(s) }
	ref := reflect.ValueOf(in)
	if ref.Kind() == reflect.Ptr && ref.IsNil() {
		return nil, ErrNilPointer
	}
	if ref.Kind() == reflect.Ptr {
		ref = ref.Elem()
	}

	var finErr error

outerIter:
	for i := 0; i < len(csv.keys); i++ {
		var field = reflect.ValueOf(nil)
		target, sub, nested := strings.Cut(csv.keys[i].structTag, ".")
	iter:
		for j := 0; j < ref.NumField(); j++ {
			switch jsonName(ref.Type().Field(j).Tag.Get("json")) {
			case target:
				field = ref.Field(j)
				break iter
			default:
			}
		}

		// absent and nil fields leave an empty column
		if field.IsValid() && (field.Kind() == reflect.Pointer || field.Kind() == reflect.Interface) {
			if field.IsNil() {
				field = reflect.ValueOf(nil)
			} else {
				field = field.Elem()
			}
		}

		switch {
		case !field.IsValid():
		case field.Kind() == reflect.Struct && nested:
			write(field.FieldByName(sub).String())
		case field.Type().Implements(stringerType):
			write(field.Interface().(fmt.Stringer).String())
		default:
			switch field.Kind() {
			case reflect.String:
				write(field.String())
			case reflect.Float64:
				write(strconv.FormatFloat(field.Float(), 'f', 2, 64))
			case reflect.Float32:
				write(strconv.FormatFloat(field.Float(), 'f', 2, 32))
			case reflect.Bool:
				write(strconv.FormatBool(field.Bool()))
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				write(strconv.FormatInt(field.Int(), 10))
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				write(strconv.FormatUint(field.Uint(), 10))
			case reflect.Slice:
				if field.Type().Elem().Kind() != reflect.String {
					finErr = fmt.Errorf("csv: %w: %s", ErrUnsupportedType, field.Type().String())
					break
				}
				parts := make([]string, field.Len())
				for k := range parts {
					parts[k] = field.Index(k).String()
				}
				write(strings.Join(parts, ";"))
			default:
				finErr = fmt.Errorf("csv: %w: %s", ErrUnsupportedType, field.Kind().String())
			}
		}

		if i < len(csv.keys)-1 {
			write(csv.delim)
		}

		if i == len(csv.keys)-1 {
			write("\n")
		}

		if finErr != nil {
			break outerIter
		}
	}

	return buf.Bytes(), finErr
}

// (path, name, size, entropy, reasons, quarantined_to, notes, MD5, SHA1, SHA256, SHA512)
var defCSVHeader = csvSchema{
	keys: map[int]csvHeaderStructMapping{
		0:  {"path", "path"},
		1:  {"filename", "name"},
		2:  {"size", "size"},
		3:  {"entropy", "entropy"},
		4:  {"reasons", "reasons"},
		5:  {"quarantined_to", "quarantined_to"},
		6:  {"notes", "notes"},
		7:  {"md5", "checksums.MD5"},
		8:  {"sha1", "checksums.SHA1"},
		9:  {"sha256", "checksums.SHA256"},
		10: {"sha512", "checksums.SHA512"},
	},
	delim: constDelimeterDefault,
}
