package output

import (
	"fmt"
	"io"
	"reflect"
)

// TextFormatter writes plain text. Strings and Texter results are printed
// on one line; structs and maps as "name: value" lines.
type TextFormatter struct{}

// Format formats data as plain text.
func (f *TextFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case Texter:
		_, err := fmt.Fprintln(w, v.Text())
		return err
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(w, v.String())
		return err
	}

	table, err := toTable(data)
	if err != nil {
		_, err = fmt.Fprintf(w, "%v\n", data)
		return err
	}
	for _, row := range table.Rows {
		if _, err := fmt.Fprintf(w, "%s: %s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
