package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strconv"
)

// Distribution is a fixed-length float vector. NaN placeholders from the
// producer are rendered as null on the wire and restored as NaN when read
// back.
type Distribution []float64

// MarshalJSON renders NaN elements as null.
func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores null elements as NaN.
func (d *Distribution) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal distribution: %w", err)
	}
	out := make(Distribution, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*d = out
	return nil
}

// Colorgram is the computed visual summary for one dimension-combination
// group of raw images. It is indexed once per group and never partially
// updated; a change in the constituent images changes S3Key, producing a
// new document instead of overwriting a mismatched one.
type Colorgram struct {
	ExperimentName string
	S3Key          string
	Downloads      []string
	Dims           map[string]string
	RGBDist        Distribution
	RGBDistStd     Distribution
	JzAzBzDist     Distribution
	JzAzBzDistStd  Distribution
}

// Path is the artifact's object-store key: {experiment_name}/{s3_key}.
func (c Colorgram) Path() string {
	return path.Join(c.ExperimentName, c.S3Key)
}

var colorgramFields = map[string]bool{
	"experiment_name": true,
	"s3_key":          true,
	"downloads":       true,
	"rgb_dist":        true,
	"rgb_dist_std":    true,
	"jzazbz_dist":     true,
	"jzazbz_dist_std": true,
}

// Fields returns the flat wire representation: dimension tags merged into
// the top level alongside the fixed fields.
func (c Colorgram) Fields() map[string]any {
	m := make(map[string]any, 7+len(c.Dims))
	for k, v := range c.Dims {
		if !colorgramFields[k] {
			m[k] = v
		}
	}
	m["experiment_name"] = c.ExperimentName
	m["s3_key"] = c.S3Key
	m["downloads"] = c.Downloads
	m["rgb_dist"] = c.RGBDist
	m["rgb_dist_std"] = c.RGBDistStd
	m["jzazbz_dist"] = c.JzAzBzDist
	m["jzazbz_dist_std"] = c.JzAzBzDistStd
	return m
}

// MarshalJSON flattens Dims into the top-level object.
func (c Colorgram) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Fields())
}

// UnmarshalJSON pulls fixed fields out of the flat object; remaining
// string-valued fields are dimension tags.
func (c *Colorgram) UnmarshalJSON(data []byte) error {
	var aux struct {
		ExperimentName string       `json:"experiment_name"`
		S3Key          string       `json:"s3_key"`
		Downloads      []string     `json:"downloads"`
		RGBDist        Distribution `json:"rgb_dist"`
		RGBDistStd     Distribution `json:"rgb_dist_std"`
		JzAzBzDist     Distribution `json:"jzazbz_dist"`
		JzAzBzDistStd  Distribution `json:"jzazbz_dist_std"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal colorgram: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshal colorgram fields: %w", err)
	}
	c.ExperimentName = aux.ExperimentName
	c.S3Key = aux.S3Key
	c.Downloads = aux.Downloads
	c.RGBDist = aux.RGBDist
	c.RGBDistStd = aux.RGBDistStd
	c.JzAzBzDist = aux.JzAzBzDist
	c.JzAzBzDistStd = aux.JzAzBzDistStd
	for k, v := range m {
		if colorgramFields[k] {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if c.Dims == nil {
			c.Dims = make(map[string]string)
		}
		c.Dims[k] = s
	}
	return nil
}
