package config

import (
	"fmt"
	"strconv"
)

// fieldBinder converts one settings-row string into a typed config field,
// producing an error that names the offending group and key.
type fieldBinder struct {
	grp, key, value string
}

func newFieldBinder(grp, key, value string) fieldBinder {
	return fieldBinder{grp: grp, key: key, value: value}
}

func (b fieldBinder) intField(dst *int) error {
	v, err := strconv.Atoi(b.value)
	if err != nil {
		return fmt.Errorf("%s.%s: expected integer, got %q", b.grp, b.key, b.value)
	}
	*dst = v
	return nil
}

func (b fieldBinder) byteField(dst *byte) error {
	v, err := strconv.ParseUint(b.value, 10, 8)
	if err != nil {
		return fmt.Errorf("%s.%s: expected small integer, got %q", b.grp, b.key, b.value)
	}
	*dst = byte(v)
	return nil
}

func (b fieldBinder) floatField(dst *float64) error {
	v, err := strconv.ParseFloat(b.value, 64)
	if err != nil {
		return fmt.Errorf("%s.%s: expected number, got %q", b.grp, b.key, b.value)
	}
	*dst = v
	return nil
}

func (b fieldBinder) boolField(dst *bool) error {
	v, err := strconv.ParseBool(b.value)
	if err != nil {
		return fmt.Errorf("%s.%s: expected boolean, got %q", b.grp, b.key, b.value)
	}
	*dst = v
	return nil
}

func (b fieldBinder) boolPtrField(dst **bool) error {
	v, err := strconv.ParseBool(b.value)
	if err != nil {
		return fmt.Errorf("%s.%s: expected boolean, got %q", b.grp, b.key, b.value)
	}
	*dst = &v
	return nil
}

func (b fieldBinder) unknown() error {
	return fmt.Errorf("unknown setting %s.%s", b.grp, b.key)
}
