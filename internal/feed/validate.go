package feed

import (
	"encoding/json"
	"fmt"
)

var contentLists = []string{"shortFormVideos", "movies", "series", "tvSpecials"}

// FileSummary describes a feed file that was checked with ValidateFile.
type FileSummary struct {
	ProviderName    string
	LastUpdated     string
	ShortFormVideos int
	Movies          int
	Series          int
	TVSpecials      int
}

// ValidateFile checks a feed document. It returns an error only when data
// is not a JSON object; content problems are returned as a list.
func ValidateFile(data []byte) (*FileSummary, []string, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var problems []string
	if _, ok := doc["providerName"]; !ok {
		problems = append(problems, "Missing required field: providerName")
	}
	if _, ok := doc["lastUpdated"]; !ok {
		problems = append(problems, "Missing required field: lastUpdated")
	}

	counts := make(map[string]int, len(contentLists))
	for _, list := range contentLists {
		items, _ := doc[list].([]interface{})
		counts[list] = len(items)
		for i, raw := range items {
			item, _ := raw.(map[string]interface{})
			prefix := fmt.Sprintf("%s[%d]", list, i)
			for _, field := range []string{"id", "title", "thumbnail"} {
				if !truthy(item[field]) {
					problems = append(problems, fmt.Sprintf("%s: Missing '%s'", prefix, field))
				}
			}
		}
	}
	if counts["shortFormVideos"]+counts["movies"]+counts["series"]+counts["tvSpecials"] == 0 {
		problems = append(problems, "Feed has no content (no videos, movies, or series)")
	}

	summary := &FileSummary{
		ShortFormVideos: counts["shortFormVideos"],
		Movies:          counts["movies"],
		Series:          counts["series"],
		TVSpecials:      counts["tvSpecials"],
	}
	summary.ProviderName, _ = doc["providerName"].(string)
	summary.LastUpdated, _ = doc["lastUpdated"].(string)
	return summary, problems, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}
