package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// maxBody caps how much of a downstream response is read.
const maxBody = 1 << 20

// WebConfig holds the base URLs of the HTTP-backed tools so tests can point
// them at a local server.
type WebConfig struct {
	Client    *http.Client
	UserAgent string

	WeatherURL  string
	CryptoURL   string
	GitHubURL   string
	IPInfoURL   string
	FactURL     string
	AdviceURL   string
	JokeURL     string
	CatFactURL  string
	DogImageURL string
	QuoteURL    string
	RedditURL   string
}

// DefaultWebConfig points every tool at its public endpoint.
func DefaultWebConfig() WebConfig {
	return WebConfig{
		Client:      &http.Client{Timeout: 10 * time.Second},
		UserAgent:   "toolchat/1.0",
		WeatherURL:  "https://wttr.in",
		CryptoURL:   "https://api.coingecko.com/api/v3",
		GitHubURL:   "https://api.github.com",
		IPInfoURL:   "https://ipapi.co",
		FactURL:     "https://uselessfacts.jsph.pl",
		AdviceURL:   "https://api.adviceslip.com",
		JokeURL:     "https://official-joke-api.appspot.com",
		CatFactURL:  "https://catfact.ninja",
		DogImageURL: "https://dog.ceo",
		QuoteURL:    "https://api.quotable.io",
		RedditURL:   "https://www.reddit.com",
	}
}

type WeatherInput struct {
	City string `json:"city" jsonschema_description:"City name (e.g. \"London\", \"New York\")."`
}

type CryptoPriceInput struct {
	Crypto string `json:"crypto" jsonschema_description:"Cryptocurrency id (e.g. \"bitcoin\", \"ethereum\", \"dogecoin\")."`
}

type GitHubUserInput struct {
	Username string `json:"username" jsonschema_description:"GitHub username."`
}

type IPInfoInput struct {
	IP string `json:"ip,omitempty" jsonschema_description:"IP address to look up (leave empty for the current IP)."`
}

type RedditPostsInput struct {
	Subreddit string `json:"subreddit" jsonschema_description:"Subreddit name (e.g. \"programming\", \"golang\", \"news\")."`
	Limit     string `json:"limit,omitempty" jsonschema_description:"Number of posts to fetch (default 5, max 25)."`
}

type SearchRedditInput struct {
	Query string `json:"query" jsonschema_description:"Search query."`
	Limit string `json:"limit,omitempty" jsonschema_description:"Number of results (default 5, max 25)."`
}

// WebTools returns the tools that call public HTTP APIs.
func WebTools(cfg WebConfig) []ToolDefinition {
	w := &web{cfg: cfg}
	if w.cfg.Client == nil {
		w.cfg.Client = http.DefaultClient
	}
	return []ToolDefinition{
		NewTool("get_weather", "Get current weather information for a city", w.weather),
		NewTool("get_random_fact", "Get a random interesting fact", w.randomFact),
		NewTool("get_advice", "Get a random piece of advice", w.advice),
		NewTool("get_joke", "Get a random programming joke", w.joke),
		NewTool("get_dog_image", "Get a random dog image URL", w.dogImage),
		NewTool("get_cat_fact", "Get a random cat fact", w.catFact),
		NewTool("get_quote", "Get a random inspirational quote", w.quote),
		NewTool("get_crypto_price", "Get current cryptocurrency price in USD", w.cryptoPrice),
		NewTool("get_github_user", "Get information about a GitHub user", w.githubUser),
		NewTool("get_ip_info", "Get information about an IP address or your current IP", w.ipInfo),
		NewTool("get_reddit_posts", "Get top posts from a Reddit subreddit", w.redditPosts),
		NewTool("search_reddit", "Search Reddit for posts across all subreddits", w.searchReddit),
	}
}

type web struct {
	cfg WebConfig
}

// get fetches u and returns the body as validated JSON.
func (w *web) get(ctx context.Context, u string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if w.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", w.cfg.UserAgent)
	}

	resp, err := w.cfg.Client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("GET %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read %s: %w", req.URL.Redacted(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, fmt.Errorf("GET %s: status %d", req.URL.Redacted(), resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("GET %s: response is not JSON", req.URL.Redacted())
	}
	return gjson.ParseBytes(body), nil
}

func (w *web) weather(ctx context.Context, in WeatherInput) (string, error) {
	city := strings.TrimSpace(in.City)
	if city == "" {
		return "", errors.New("city is required")
	}
	data, err := w.get(ctx, w.cfg.WeatherURL+"/"+url.PathEscape(city)+"?format=j1")
	if err != nil {
		return "", fmt.Errorf("could not fetch weather for %s: %w", city, err)
	}
	cur := data.Get("current_condition.0")
	area := data.Get("nearest_area.0")
	if !cur.Exists() {
		return "", fmt.Errorf("no weather data for %s", city)
	}
	return fmt.Sprintf(`Weather in %s, %s:
- Temperature: %s°C (%s°F)
- Feels Like: %s°C
- Condition: %s
- Humidity: %s%%
- Wind: %s km/h %s
- Visibility: %s km`,
		area.Get("areaName.0.value").String(), area.Get("country.0.value").String(),
		cur.Get("temp_C").String(), cur.Get("temp_F").String(),
		cur.Get("FeelsLikeC").String(),
		cur.Get("weatherDesc.0.value").String(),
		cur.Get("humidity").String(),
		cur.Get("windspeedKmph").String(), cur.Get("winddir16Point").String(),
		cur.Get("visibility").String(),
	), nil
}

func (w *web) randomFact(ctx context.Context, _ noArgs) (string, error) {
	data, err := w.get(ctx, w.cfg.FactURL+"/random.json?language=en")
	if err != nil {
		return "", fmt.Errorf("could not fetch fact: %w", err)
	}
	return "Random Fact: " + data.Get("text").String(), nil
}

func (w *web) advice(ctx context.Context, _ noArgs) (string, error) {
	data, err := w.get(ctx, w.cfg.AdviceURL+"/advice")
	if err != nil {
		return "", fmt.Errorf("could not fetch advice: %w", err)
	}
	return "Advice: " + data.Get("slip.advice").String(), nil
}

func (w *web) joke(ctx context.Context, _ noArgs) (string, error) {
	data, err := w.get(ctx, w.cfg.JokeURL+"/random_joke")
	if err != nil {
		return "", fmt.Errorf("could not fetch joke: %w", err)
	}
	return data.Get("setup").String() + "\n\n" + data.Get("punchline").String(), nil
}

func (w *web) dogImage(ctx context.Context, _ noArgs) (string, error) {
	data, err := w.get(ctx, w.cfg.DogImageURL+"/api/breeds/image/random")
	if err != nil {
		return "", fmt.Errorf("could not fetch dog image: %w", err)
	}
	return "Random dog image: " + data.Get("message").String(), nil
}

func (w *web) catFact(ctx context.Context, _ noArgs) (string, error) {
	data, err := w.get(ctx, w.cfg.CatFactURL+"/fact")
	if err != nil {
		return "", fmt.Errorf("could not fetch cat fact: %w", err)
	}
	return "Cat Fact: " + data.Get("fact").String(), nil
}

func (w *web) quote(ctx context.Context, _ noArgs) (string, error) {
	data, err := w.get(ctx, w.cfg.QuoteURL+"/random")
	if err != nil {
		return "", fmt.Errorf("could not fetch quote: %w", err)
	}
	return fmt.Sprintf("%q\n\n- %s", data.Get("content").String(), data.Get("author").String()), nil
}

func (w *web) cryptoPrice(ctx context.Context, in CryptoPriceInput) (string, error) {
	id := strings.ToLower(strings.TrimSpace(in.Crypto))
	if id == "" {
		return "", errors.New("crypto is required")
	}
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	data, err := w.get(ctx, w.cfg.CryptoURL+"/simple/price?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("could not fetch price for %s: %w", in.Crypto, err)
	}

	// Ids may contain characters gjson treats as path syntax, so match keys directly.
	var coin gjson.Result
	data.ForEach(func(k, v gjson.Result) bool {
		if k.String() == id {
			coin = v
			return false
		}
		return true
	})
	if !coin.Exists() {
		return "", fmt.Errorf("cryptocurrency %q not found", in.Crypto)
	}

	change := coin.Get("usd_24h_change").Float()
	sign := ""
	if change >= 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s Price:\n- Current: $%s\n- 24h Change: %s%.2f%%",
		strings.ToUpper(in.Crypto), groupThousands(coin.Get("usd").Float()), sign, change), nil
}

// groupThousands renders f with comma separators and at most two decimals.
func groupThousands(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	intPart, frac, hasFrac := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func (w *web) githubUser(ctx context.Context, in GitHubUserInput) (string, error) {
	user := strings.TrimSpace(in.Username)
	if user == "" {
		return "", errors.New("username is required")
	}
	data, err := w.get(ctx, w.cfg.GitHubURL+"/users/"+url.PathEscape(user))
	if err != nil {
		return "", fmt.Errorf("GitHub user %q not found: %w", user, err)
	}
	return fmt.Sprintf(`GitHub User: %s
- Name: %s
- Bio: %s
- Public Repos: %d
- Followers: %d
- Following: %d
- Profile: %s`,
		data.Get("login").String(),
		orDefault(data.Get("name").String(), "N/A"),
		orDefault(data.Get("bio").String(), "No bio"),
		data.Get("public_repos").Int(),
		data.Get("followers").Int(),
		data.Get("following").Int(),
		data.Get("html_url").String(),
	), nil
}

func (w *web) ipInfo(ctx context.Context, in IPInfoInput) (string, error) {
	u := w.cfg.IPInfoURL + "/json/"
	if ip := strings.TrimSpace(in.IP); ip != "" {
		u = w.cfg.IPInfoURL + "/" + url.PathEscape(ip) + "/json/"
	}
	data, err := w.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("could not fetch IP information: %w", err)
	}
	if data.Get("error").Bool() {
		return "", errors.New(orDefault(data.Get("reason").String(), "lookup failed"))
	}
	return fmt.Sprintf(`IP Information:
- IP: %s
- City: %s
- Region: %s
- Country: %s
- ISP: %s
- Timezone: %s`,
		data.Get("ip").String(),
		data.Get("city").String(),
		data.Get("region").String(),
		data.Get("country_name").String(),
		data.Get("org").String(),
		data.Get("timezone").String(),
	), nil
}

func (w *web) redditPosts(ctx context.Context, in RedditPostsInput) (string, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(in.Subreddit), "r/")
	if sub == "" {
		return "", errors.New("subreddit is required")
	}
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", w.cfg.RedditURL, url.PathEscape(sub), redditLimit(in.Limit))
	data, err := w.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("could not fetch posts from r/%s: %w", sub, err)
	}
	posts := data.Get("data.children").Array()
	if len(posts) == 0 {
		return "No posts found in r/" + sub, nil
	}
	return formatPosts("Top posts from r/"+sub+":", posts, false), nil
}

func (w *web) searchReddit(ctx context.Context, in SearchRedditInput) (string, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "", errors.New("query is required")
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(redditLimit(in.Limit)))
	q.Set("sort", "relevance")
	data, err := w.get(ctx, w.cfg.RedditURL+"/search.json?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("could not search Reddit for %q: %w", query, err)
	}
	posts := data.Get("data.children").Array()
	if len(posts) == 0 {
		return fmt.Sprintf("No results found for %q", query), nil
	}
	return formatPosts(fmt.Sprintf("Reddit search results for %q:", query), posts, true), nil
}

func redditLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 5
	}
	return min(n, 25)
}

func formatPosts(header string, posts []gjson.Result, withSub bool) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, post := range posts {
		p := post.Get("data")
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, p.Get("title").String())
		if withSub {
			fmt.Fprintf(&b, "   r/%s | ", p.Get("subreddit").String())
		} else {
			b.WriteString("   ")
		}
		fmt.Fprintf(&b, "%d upvotes | %d comments\n", p.Get("ups").Int(), p.Get("num_comments").Int())
		fmt.Fprintf(&b, "   https://reddit.com%s\n", p.Get("permalink").String())
	}
	return strings.TrimSpace(b.String())
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
