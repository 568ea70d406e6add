package dukeenergy

import (
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

const (
	meterWidgetTag  = "duke-dropdown"
	meterWidgetID   = "usageAnalysisMeter"
	meterWidgetAttr = "items"
)

// MeterItem is one entry of the meter dropdown on the usage analysis page.
type MeterItem struct {
	Text              string `mapstructure:"text"`
	CalendarStartDate string `mapstructure:"CalendarStartDate"`
}

// MeterExtractor finds the meters listed on the usage analysis page.
type MeterExtractor interface {
	ExtractMeterItems(r io.Reader) ([]MeterItem, error)
}

// WidgetExtractor reads the meters from the JSON encoded items attribute of
// the <duke-dropdown id="usageAnalysisMeter"> element.
type WidgetExtractor struct{}

// ExtractMeterItems implements MeterExtractor.
func (WidgetExtractor) ExtractMeterItems(r io.Reader) ([]MeterItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing usage analysis page: %w", err)
	}

	n := findElement(doc, meterWidgetTag, meterWidgetID)
	if n == nil {
		return nil, ErrWidgetNotFound
	}
	raw, ok := attr(n, meterWidgetAttr)
	if !ok {
		return nil, fmt.Errorf("%w: no %s attribute", ErrWidgetNotFound, meterWidgetAttr)
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding meter items: %w", err)
	}

	out := make([]MeterItem, 0, len(items))
	for _, item := range items {
		var mi MeterItem
		if err := decode(item, &mi); err != nil {
			return nil, fmt.Errorf("decoding meter item: %w", err)
		}
		out = append(out, mi)
	}
	return out, nil
}

func findElement(n *html.Node, tag, id string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		if v, ok := attr(n, "id"); ok && v == id {
			return n
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
