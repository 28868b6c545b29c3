package openweather

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// statusCode holds the "cod" field, which the API sends as a number on
// /weather and as a string on /forecast
type statusCode struct {
	value int
	set   bool
}

func (s *statusCode) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	// Numbers may arrive as 200.0, so parse as float and require an integral value
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid cod %s: %w", data, err)
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("invalid cod %s: not an integer", data)
	}
	s.value, s.set = int(v), true
	return nil
}

type mainBlock struct {
	Temp     *float64 `json:"temp"`
	Humidity *int     `json:"humidity"`
	Pressure *int     `json:"pressure"`
}

type conditionBlock struct {
	Description string `json:"description"`
}

type windBlock struct {
	Speed *float64 `json:"speed"`
	Deg   *float64 `json:"deg"`
}

type sysBlock struct {
	Sunrise *int64 `json:"sunrise"`
	Sunset  *int64 `json:"sunset"`
}

// currentResponse is the /weather body
type currentResponse struct {
	Cod      statusCode       `json:"cod"`
	Message  json.RawMessage  `json:"message"`
	Dt       *int64           `json:"dt"`
	Timezone *int             `json:"timezone"`
	Main     *mainBlock       `json:"main"`
	Weather  []conditionBlock `json:"weather"`
	Wind     *windBlock       `json:"wind"`
	Sys      *sysBlock        `json:"sys"`
}

type forecastEntry struct {
	Dt      *int64           `json:"dt"`
	Main    *mainBlock       `json:"main"`
	Weather []conditionBlock `json:"weather"`
	Wind    *windBlock       `json:"wind"`
}

// forecastResponse is the /forecast body
type forecastResponse struct {
	Cod     statusCode      `json:"cod"`
	Message json.RawMessage `json:"message"`
	List    []forecastEntry `json:"list"`
	City    *struct {
		Timezone *int  `json:"timezone"`
		Sunrise  int64 `json:"sunrise"`
		Sunset   int64 `json:"sunset"`
	} `json:"city"`
}

func description(w []conditionBlock) (string, bool) {
	if len(w) == 0 || w[0].Description == "" {
		return "", false
	}
	return w[0].Description, true
}
