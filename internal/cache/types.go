package cache

import "time"

// CachedResponse is a completion answer stored under a prompt hash
type CachedResponse struct {
	Model    string    `json:"model"`
	Answer   string    `json:"answer"`
	CachedAt time.Time `json:"cached_at"`
	TTL      int64     `json:"ttl"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}
