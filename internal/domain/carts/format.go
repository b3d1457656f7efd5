package carts

import (
	"fmt"
	"strings"
)

// String renders "<id>: <name>".
func (it *Item) String() string {
	if it == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d: %s", it.ID, it.Name)
}

// String renders "<id>: <label>, Items: [<item> | <item>]".
func (c *Cart) String() string {
	if c == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		parts = append(parts, it.String())
	}
	return fmt.Sprintf("%d: %s, Items: [%s]", c.ID, c.LabelOr("null"), strings.Join(parts, " | "))
}

// FormatList renders one entry per line.
func FormatList[T fmt.Stringer](values []T) string {
	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, v.String())
	}
	return strings.Join(lines, "\n")
}
