package headers

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"

	http "github.com/bogdanfinn/fhttp"
)

type Profile struct {
	ua        string
	secCHUA   string
	platform  string
	acceptIdx int
	langIdx   int
	encIdx    int
	cacheIdx  int
	keepAlive bool
}

var (
	acceptOpts = []string{
		"application/json, text/plain, */*",
		"application/json",
		"application/json, text/javascript, */*; q=0.01",
	}
	encOpts = []string{
		"gzip, deflate, br",
		"gzip, deflate, br, zstd",
	}
	langOpts = []string{
		"en-US,en;q=0.9",
		"en-GB,en;q=0.9",
		"en-GB,en;q=0.9,en-US;q=0.8",
		"de-DE,de;q=0.9,en;q=0.8",
		"fr-FR,fr;q=0.9,en;q=0.8",
		"en,en-US;q=0.9",
	}
	cacheOpts = []string{
		"no-cache",
		"max-age=0",
		"",
	}

	headerOrder = []string{
		"Host",
		"User-Agent",
		"Accept",
		"Accept-Language",
		"Accept-Encoding",
		"Sec-CH-UA",
		"Sec-CH-UA-Mobile",
		"Sec-CH-UA-Platform",
		"Origin",
		"Connection",
		"Referer",
		"Sec-Fetch-Dest",
		"Sec-Fetch-Mode",
		"Sec-Fetch-Site",
		"Cache-Control",
		"Priority",
	}
)

// profilePool is swapped wholesale on reset while other goroutines may be
// filling or draining the previous pool.
var profilePool atomic.Pointer[sync.Pool]

func init() {
	profilePool.Store(newProfilePool())
}

func newProfilePool() *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			return generateProfile()
		},
	}
}

func generateRandomUA() (ua, platform string) {
	chromeMaj := rand.Intn(12) + 128
	firefoxMaj := rand.Intn(12) + 124

	switch rand.Intn(5) {
	case 0: // Windows Chrome
		return fmt.Sprintf(
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", chromeMaj,
		), "Windows"
	case 1: // macOS Chrome
		return fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", chromeMaj,
		), "macOS"
	case 2: // Windows Edge
		return fmt.Sprintf(
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36 Edg/%d.0.0.0", chromeMaj, chromeMaj,
		), "Windows"
	case 3: // macOS Firefox
		return fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:%d.0) Gecko/20100101 Firefox/%d.0",
			firefoxMaj, firefoxMaj,
		), "macOS"
	default: // Linux Chrome
		return fmt.Sprintf(
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
				"(KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", chromeMaj,
		), "Linux"
	}
}

// generateSecCHUA returns the client hint brand list, or "" for browsers that
// do not send one.
func generateSecCHUA(ua string) string {
	idx := strings.Index(ua, "Chrome/")
	if idx == -1 {
		return ""
	}
	ver := ua[idx+7:]
	if j := strings.Index(ver, "."); j != -1 {
		ver = ver[:j]
	}
	brand := "Google Chrome"
	if strings.Contains(ua, "Edg/") {
		brand = "Microsoft Edge"
	}
	return fmt.Sprintf(`"Chromium";v="%s", "%s";v="%s", "Not?A_Brand";v="99"`, ver, brand, ver)
}

func generateProfile() Profile {
	ua, platform := generateRandomUA()
	return Profile{
		ua:        ua,
		secCHUA:   generateSecCHUA(ua),
		platform:  platform,
		acceptIdx: rand.Intn(len(acceptOpts)),
		langIdx:   rand.Intn(len(langOpts)),
		encIdx:    rand.Intn(len(encOpts)),
		cacheIdx:  rand.Intn(len(cacheOpts)),
		keepAlive: rand.Intn(4) != 0,
	}
}

// BuildHeaders returns an ordered browser-like header set for an XHR issued
// from the vendor storefront at origin.
func BuildHeaders(origin, referer string) http.Header {
	pool := profilePool.Load()
	profile := pool.Get().(Profile)
	defer pool.Put(profile)

	h := http.Header{}
	h.Set("User-Agent", profile.ua)
	h.Set("Accept", acceptOpts[profile.acceptIdx])
	h.Set("Accept-Language", langOpts[profile.langIdx])
	h.Set("Accept-Encoding", encOpts[profile.encIdx])

	if profile.secCHUA != "" {
		h.Set("Sec-CH-UA", profile.secCHUA)
		h.Set("Sec-CH-UA-Mobile", "?0")
		h.Set("Sec-CH-UA-Platform", `"`+profile.platform+`"`)
		h.Set("Priority", "u=1, i")
	}

	if origin != "" {
		h.Set("Origin", origin)
	}
	if referer != "" {
		h.Set("Referer", referer)
	}
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "cross-site")

	if profile.keepAlive {
		h.Set("Connection", "keep-alive")
	}
	if cc := cacheOpts[profile.cacheIdx]; cc != "" {
		h.Set("Cache-Control", cc)
	}

	h[http.HeaderOrderKey] = headerOrder

	return h
}

// InitProfilePool pre-generates count profiles.
func InitProfilePool(count int) {
	for i := 0; i < count; i++ {
		profilePool.Load().Put(generateProfile())
	}
}

// ResetProfilePool discards every pooled profile so later requests get fresh
// fingerprints. Safe to call while InitProfilePool runs.
func ResetProfilePool() {
	profilePool.Store(newProfilePool())
}
