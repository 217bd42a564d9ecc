package models

import (
	"fmt"
	"reflect"
	"time"
)

// Column is implemented by every Opt field of a record.
type Column interface {
	Present() bool
	SQLValue() any
}

type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindInt
	KindBool
	KindJSON
	KindTime
)

// Field is one entry in a record's fixed column table.
type Field struct {
	Column string
	Kind   FieldKind
	index  int
}

// FieldTable is the ordered column list of one record type, derived once
// from its `db` struct tags.
type FieldTable struct {
	typ    reflect.Type
	fields []Field
}

var columnType = reflect.TypeOf((*Column)(nil)).Elem()

func NewFieldTable(sample any) *FieldTable {
	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	ft := &FieldTable{typ: t}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		col := sf.Tag.Get("db")
		if col == "" || col == "-" {
			continue
		}
		if !sf.Type.Implements(columnType) {
			panic(fmt.Sprintf("models: %s.%s is tagged db:%q but is not an Opt", t.Name(), sf.Name, col))
		}
		ft.fields = append(ft.fields, Field{Column: col, Kind: kindOf(sf.Type), index: i})
	}
	return ft
}

func kindOf(t reflect.Type) FieldKind {
	val, _ := t.FieldByName("Val")
	switch val.Type {
	case reflect.TypeOf(float64(0)):
		return KindNumber
	case reflect.TypeOf(int64(0)):
		return KindInt
	case reflect.TypeOf(false):
		return KindBool
	case reflect.TypeOf(JSONText("")):
		return KindJSON
	case reflect.TypeOf(time.Time{}):
		return KindTime
	default:
		return KindText
	}
}

func (ft *FieldTable) Fields() []Field {
	return ft.fields
}

func (ft *FieldTable) Columns() []string {
	cols := make([]string, len(ft.fields))
	for i, f := range ft.fields {
		cols[i] = f.Column
	}
	return cols
}

// Present returns the supplied columns of rec and their bind values, in
// table order.
func (ft *FieldTable) Present(rec any) ([]string, []any) {
	v := reflect.ValueOf(rec)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Type() != ft.typ {
		panic(fmt.Sprintf("models: field table for %s used with %s", ft.typ.Name(), v.Type().Name()))
	}

	var cols []string
	var vals []any
	for _, f := range ft.fields {
		c := v.Field(f.index).Interface().(Column)
		if !c.Present() {
			continue
		}
		cols = append(cols, f.Column)
		vals = append(vals, c.SQLValue())
	}
	return cols, vals
}
