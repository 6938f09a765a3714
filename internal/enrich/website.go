package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/normalize"
)

// Keyword vocabularies checked against a site's visible text. License and
// regulator language is what a legitimately licensed operator tends to
// publish; contact/photos/staff pages are effort a throwaway listing
// rarely spends.
var (
	licenseKeywords = []string{
		"licensed", "state licensed", "child care license", "licensed daycare",
	}
	defaultRegulatorTerms = []string{
		"dcyf", "department of children, youth, and families",
	}
	contactKeywords = []string{
		"contact us", "contact", "schedule a tour", "visit us",
	}
	photoKeywords = []string{
		"photo gallery", "photos", "our classrooms", "our facility",
	}
	staffKeywords = []string{
		"our teachers", "meet our staff", "our team", "teacher bios",
	}
)

// WebsiteFetcher pulls a provider's website and derives content signals.
type WebsiteFetcher struct {
	client         *resty.Client
	regulatorTerms []string
	logger         *slog.Logger
}

// NewWebsiteFetcher returns a fetcher. Empty regulatorTerms fall back to
// the built-in defaults.
func NewWebsiteFetcher(timeout time.Duration, userAgent string, regulatorTerms []string, logger *slog.Logger) *WebsiteFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	if len(regulatorTerms) == 0 {
		regulatorTerms = defaultRegulatorTerms
	}
	return &WebsiteFetcher{
		client:         client,
		regulatorTerms: regulatorTerms,
		logger:         logger,
	}
}

// Fetch retrieves the provider's website and fills the website signal
// block, extracting a contact email along the way. Providers without a
// website are left untouched. A transport failure is returned to the
// caller; an HTTP error status is a valid answer ("not reachable"), not
// an error.
func (w *WebsiteFetcher) Fetch(ctx context.Context, p *models.Provider, led *evidence.Ledger) error {
	if p.Website == nil || *p.Website == "" {
		return nil
	}
	url := *p.Website

	resp, err := w.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("fetching website %s: %w", url, err)
	}

	now := time.Now().UTC()
	status := resp.StatusCode()
	p.Signals.WebsiteHTTPStatus = models.IntPtr(status)
	p.Signals.WebsiteLastCrawled = &now
	p.Signals.WebsiteReachable = status < 400

	if !p.Signals.WebsiteReachable {
		w.logger.Debug("website answered with error status", "url", url, "status", status)
		id := led.Append(models.EvidenceItem{
			ProviderID:  p.ID,
			Source:      models.SourceWebsite,
			Label:       "website_fetch",
			Severity:    models.SeverityInfo,
			Description: fmt.Sprintf("Website answered HTTP %d.", status),
			URL:         models.StrPtr(url),
			Metadata:    map[string]any{"http_status": status},
		})
		p.Investigation.AddEvidence(id)
		return nil
	}

	body := string(resp.Body())
	title, metaDesc, visibleText := parsePage(body)
	lowered := strings.ToLower(visibleText)

	if title != "" {
		p.Signals.WebsiteTitle = models.StrPtr(title)
	}
	if metaDesc != "" {
		p.Signals.WebsiteMetaDescription = models.StrPtr(metaDesc)
	}
	p.Signals.WebsiteHasLicenseLanguage = containsAny(lowered, licenseKeywords) ||
		containsAny(lowered, w.regulatorTerms)
	p.Signals.WebsiteHasRegulatorMention = containsAny(lowered, w.regulatorTerms)
	p.Signals.WebsiteHasContactPage = containsAny(lowered, contactKeywords)
	p.Signals.WebsiteHasPhotos = containsAny(lowered, photoKeywords)
	p.Signals.WebsiteHasStaffBios = containsAny(lowered, staffKeywords)

	// Email addresses hide in mailto: links as often as in visible text,
	// so scan the raw markup.
	if email := normalize.ExtractEmail(body); email != "" {
		if p.PrimaryEmail == nil {
			p.PrimaryEmail = models.StrPtr(email)
		}
		p.Signals.EmailDomainType = normalize.ClassifyEmailDomain(email)
		id := led.Append(models.EvidenceItem{
			ProviderID:  p.ID,
			Source:      models.SourceWebsite,
			Label:       "email_found",
			Severity:    models.SeverityInfo,
			Description: fmt.Sprintf("Contact email found on website (%s domain).", p.Signals.EmailDomainType),
			URL:         models.StrPtr(url),
		})
		p.Investigation.AddEvidence(id)
	} else {
		p.Signals.EmailDomainType = models.EmailDomainUnknown
	}

	id := led.Append(models.EvidenceItem{
		ProviderID:  p.ID,
		Source:      models.SourceWebsite,
		Label:       "website_fetch",
		Severity:    models.SeverityInfo,
		Description: fmt.Sprintf("Website reachable (HTTP %d).", status),
		URL:         models.StrPtr(url),
		RawExcerpt:  models.StrPtr(body),
		Metadata:    map[string]any{"http_status": status},
	})
	p.Investigation.AddEvidence(id)

	if p.Signals.WebsiteHasLicenseLanguage {
		id := led.Append(models.EvidenceItem{
			ProviderID:  p.ID,
			Source:      models.SourceWebsite,
			Label:       "license_language",
			Severity:    models.SeverityPositive,
			Description: "Website mentions licensing.",
			URL:         models.StrPtr(url),
		})
		p.Investigation.AddEvidence(id)
	}
	return nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// parsePage extracts the title, meta description, and visible text from
// an HTML document. Malformed markup degrades, it doesn't fail: the
// tolerant parser always returns a tree.
func parsePage(body string) (title, metaDesc, visibleText string) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", "", ""
	}

	var text strings.Builder
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				skip = true
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var name, content string
				for _, attr := range n.Attr {
					switch attr.Key {
					case "name":
						name = strings.ToLower(attr.Val)
					case "content":
						content = attr.Val
					}
				}
				if name == "description" && metaDesc == "" {
					metaDesc = strings.TrimSpace(content)
				}
			}
		case html.TextNode:
			if !skip {
				if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
					text.WriteString(trimmed)
					text.WriteByte(' ')
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, skip)
		}
	}
	walk(doc, false)

	return title, metaDesc, strings.TrimSpace(text.String())
}
