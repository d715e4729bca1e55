package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// WorkKeyPrefix is the reference shape a search doc must carry to be a
// harvestable work.
const WorkKeyPrefix = "/works/"

// SearchURL builds the subject search endpoint for one page.
func SearchURL(base, subject string, limit, page int) string {
	q := url.Values{}
	q.Set("subject", subject)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	return strings.TrimRight(base, "/") + "/search.json?" + q.Encode()
}

// WorkURL builds the detail endpoint for one work.
func WorkURL(base, workID string) string {
	return fmt.Sprintf("%s/works/%s.json", strings.TrimRight(base, "/"), workID)
}

// RatingsURL builds the ratings endpoint for one work.
func RatingsURL(base, workID string) string {
	return fmt.Sprintf("%s/works/%s/ratings.json", strings.TrimRight(base, "/"), workID)
}

// WorkIDFromKey validates a search reference and extracts the work
// identifier, the final path segment. References without the /works/
// prefix, or with nothing after it, are not harvestable.
func WorkIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, WorkKeyPrefix) {
		return "", false
	}
	id := key[strings.LastIndex(key, "/")+1:]
	if id == "" {
		return "", false
	}
	return id, true
}

// Archive keys, one object per fetched payload.

func searchKey(subject string, page int) string {
	return fmt.Sprintf("search/%s/p%d.json", strings.ReplaceAll(subject, "/", "-"), page)
}

func detailKey(workID string) string {
	return fmt.Sprintf("works/%s.json", workID)
}

func ratingsKey(workID string) string {
	return fmt.Sprintf("works/%s/ratings.json", workID)
}
