package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// jsonFloat writes NaN and ±Inf as null, which encoding/json rejects, and
// reads null back as NaN.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = jsonFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type sampleJSON struct {
	SubjectID string    `json:"subject_id"`
	Time      float64   `json:"time"`
	HR        jsonFloat `json:"hr"`
	RR        jsonFloat `json:"rr"`
	O2Rate    jsonFloat `json:"o2_rate"`
	CO2Rate   jsonFloat `json:"co2_rate"`
	AirRate   jsonFloat `json:"air_rate"`
	DistKm    jsonFloat `json:"dist_km"`
	Speed     jsonFloat `json:"speed"`
	Sex       string    `json:"sex"`
	AgeGroup  string    `json:"age_group"`
	BMIGroup  string    `json:"bmi_group"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		SubjectID: s.SubjectID,
		Time:      s.Time,
		HR:        jsonFloat(s.HR),
		RR:        jsonFloat(s.RR),
		O2Rate:    jsonFloat(s.O2Rate),
		CO2Rate:   jsonFloat(s.CO2Rate),
		AirRate:   jsonFloat(s.AirRate),
		DistKm:    jsonFloat(s.DistKm),
		Speed:     jsonFloat(s.Speed),
		Sex:       s.Sex,
		AgeGroup:  s.AgeGroup,
		BMIGroup:  s.BMIGroup,
	})
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Sample{
		SubjectID: raw.SubjectID,
		Time:      raw.Time,
		HR:        float64(raw.HR),
		RR:        float64(raw.RR),
		O2Rate:    float64(raw.O2Rate),
		CO2Rate:   float64(raw.CO2Rate),
		AirRate:   float64(raw.AirRate),
		DistKm:    float64(raw.DistKm),
		Speed:     float64(raw.Speed),
		Sex:       raw.Sex,
		AgeGroup:  raw.AgeGroup,
		BMIGroup:  raw.BMIGroup,
	}
	return nil
}
