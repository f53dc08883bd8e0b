package tpl

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// Json 存为 JSON 文本的对象列; NULL 扫描为 nil
type Json map[string]any

func (j *Json) Scan(src any) error {
	source, err := jsonSource(src)
	if err != nil || source == nil {
		*j = nil
		return err
	}
	if err := json.Unmarshal(source, j); err != nil {
		return errors.Wrap(err, "Json scan")
	}
	return nil
}

func (j Json) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(j))
	if err != nil {
		return nil, errors.Wrap(err, "Json value")
	}
	return string(b), nil
}

// JsonSlice 存为 JSON 文本的数组列
type JsonSlice []map[string]any

func (j *JsonSlice) Scan(src any) error {
	source, err := jsonSource(src)
	if err != nil || source == nil {
		*j = nil
		return err
	}
	if err := json.Unmarshal(source, j); err != nil {
		return errors.Wrap(err, "JsonSlice scan")
	}
	return nil
}

func (j JsonSlice) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal([]map[string]any(j))
	if err != nil {
		return nil, errors.Wrap(err, "JsonSlice value")
	}
	return string(b), nil
}

func jsonSource(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return nil, errors.Errorf("incompatible type %T for json column", src)
}
