package enum

type Algorithm int

const (
	TokenBucket Algorithm = iota
	LeakyBucket
)

var algorithmNames = [...]string{"token_bucket", "leaky_bucket"}

func (t Algorithm) String() string {
	if int(t) < 0 || int(t) >= len(algorithmNames) {
		return "unknown"
	}
	return algorithmNames[t]
}

// ParseAlgorithm maps a config value to an Algorithm. An empty value selects the token bucket.
func ParseAlgorithm(s string) (Algorithm, bool) {
	if s == "" {
		return TokenBucket, true
	}
	for i, name := range algorithmNames {
		if name == s {
			return Algorithm(i), true
		}
	}
	return TokenBucket, false
}

// Source names one of the polled vendor APIs. It doubles as the root path segment in the sink.
type Source string

const (
	Vasttrafik Source = "vasttrafik"
	Schoolmeal Source = "schoolmeal"
	GBGCamera  Source = "gbgcamera"
)

func (s Source) String() string {
	return string(s)
}
