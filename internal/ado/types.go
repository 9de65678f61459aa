package ado

import (
	"bytes"
	"fmt"
	"strconv"
)

// apiID accepts ids sent either as numbers or as strings, as the test
// management API does for shallow references.
type apiID int

func (id *apiID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("parse id %q: %w", data, err)
	}
	*id = apiID(n)
	return nil
}

type apiWorkItem struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev"`
	Fields    map[string]any `json:"fields"`
	Relations []apiRelation  `json:"relations"`
	URL       string         `json:"url"`
	Links     struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"_links"`
}

type apiRelation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes"`
}

type apiWorkItemType struct {
	Name          string `json:"name"`
	ReferenceName string `json:"referenceName"`
	Color         string `json:"color"`
	Icon          struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"icon"`
}

type apiShallowReference struct {
	ID   apiID  `json:"id"`
	Name string `json:"name"`
}

type apiSuite struct {
	ID   apiID               `json:"id"`
	Name string              `json:"name"`
	Plan apiShallowReference `json:"plan"`
}

type suitesResponse struct {
	Count int        `json:"count"`
	Value []apiSuite `json:"value"`
}

type apiPoint struct {
	ID              int                 `json:"id"`
	Outcome         string              `json:"outcome"`
	LastUpdatedDate string              `json:"lastUpdatedDate"`
	TestCase        apiShallowReference `json:"testCase"`
	Configuration   apiShallowReference `json:"configuration"`
}

type pointsResponse struct {
	Count int        `json:"count"`
	Value []apiPoint `json:"value"`
}
