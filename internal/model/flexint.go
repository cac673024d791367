package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlexInt はJSON/YAMLの数値と数値文字列の両方を受け付ける整数。
// フォーム値をそのまま送るクライアント向け。空文字列とnullは0になる。
type FlexInt int

// UnmarshalJSON は 5 と "5" のどちらも受け付ける。
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return n.parse(s)
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*n = FlexInt(v)
	return nil
}

// UnmarshalYAML は profiles: 5 と profiles: "5" のどちらも受け付ける。
func (n *FlexInt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an integer", value.Line)
	}
	if value.Tag == "!!null" {
		return nil
	}
	return n.parse(value.Value)
}

func (n *FlexInt) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*n = FlexInt(v)
	return nil
}
