package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a numeric string such as "2". Form
// clients send both.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%q is not an integer", s)
		}
		*f = FlexInt(n)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("%s is not an integer", n)
	}
	*f = FlexInt(i)
	return nil
}

// IntPtr converts an optional FlexInt to *int.
func (f *FlexInt) IntPtr() *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}
