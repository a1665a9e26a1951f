// Package knowledge holds the shop's static knowledge base: product
// descriptions, FAQ entries and policies, plus the builder that embeds them
// into the vector index.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Collection names in the vector index.
const (
	CollectionProducts = "products"
	CollectionFAQ      = "faq"
	CollectionPolicies = "policies"
)

// Document type tags carried in entry metadata and used by result formatting.
const (
	TypeProduct = "product"
	TypeFAQ     = "faq"
	TypePolicy  = "policy"
)

// Document is one knowledge-base entry before embedding.
type Document struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Name     string   `json:"name,omitempty"`     // product name or policy title
	Question string   `json:"question,omitempty"` // faq only
	Content  string   `json:"content"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Sizes    []string `json:"sizes,omitempty"`
	Colors   []string `json:"colors,omitempty"`
}

// EmbedText returns the text actually sent to the embedder. FAQ documents
// embed the question and answer together so queries phrased either way match.
func (d Document) EmbedText() string {
	if d.Type == TypeFAQ {
		return "Question: " + d.Question + " Answer: " + d.Content
	}
	return d.Content
}

// Metadata flattens the document's tagged fields into the string map the
// vector index stores alongside each entry. List fields are comma-joined.
func (d Document) Metadata() map[string]string {
	m := map[string]string{"type": d.Type}
	if d.Name != "" {
		m["name"] = d.Name
	}
	if d.Question != "" {
		m["question"] = d.Question
	}
	if d.Category != "" {
		m["category"] = d.Category
	}
	if len(d.Tags) > 0 {
		m["tags"] = strings.Join(d.Tags, ", ")
	}
	if len(d.Sizes) > 0 {
		m["sizes"] = strings.Join(d.Sizes, ", ")
	}
	if len(d.Colors) > 0 {
		m["colors"] = strings.Join(d.Colors, ", ")
	}
	return m
}

// Catalog is the full document set, one slice per collection.
type Catalog struct {
	Products []Document `json:"products"`
	FAQ      []Document `json:"faq"`
	Policies []Document `json:"policies"`
}

// Collections returns the catalog keyed by collection name.
func (c Catalog) Collections() map[string][]Document {
	return map[string][]Document{
		CollectionProducts: c.Products,
		CollectionFAQ:      c.FAQ,
		CollectionPolicies: c.Policies,
	}
}

// Validate checks structural invariants a hand-edited override file can break.
func (c Catalog) Validate() error {
	seen := make(map[string]bool)
	for name, docs := range c.Collections() {
		for _, d := range docs {
			if d.ID == "" {
				return fmt.Errorf("collection %s: document with empty id", name)
			}
			if seen[d.ID] {
				return fmt.Errorf("duplicate document id %q", d.ID)
			}
			seen[d.ID] = true
			if d.Content == "" {
				return fmt.Errorf("document %s: empty content", d.ID)
			}
			if d.Type == TypeFAQ && d.Question == "" {
				return fmt.Errorf("document %s: faq without a question", d.ID)
			}
		}
	}
	return nil
}

// Load reads a catalog override from a JSON file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is the operator-configured data dir
	if err != nil {
		return Catalog{}, fmt.Errorf("reading catalog file: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in document set.
func Default() Catalog {
	return Catalog{
		Products: []Document{
			{
				ID:       "product_001",
				Type:     TypeProduct,
				Name:     "My AI is Smarter Than Your Honor Student",
				Content:  "My AI is Smarter Than Your Honor Student - A witty and humorous t-shirt perfect for tech enthusiasts, students, and AI researchers. This premium cotton t-shirt features a clever design that combines academic humor with artificial intelligence themes. Available in multiple sizes (S, M, L) and colors (Black, White, Light Blue). The design is printed using high-quality, fade-resistant ink that maintains its vibrant appearance wash after wash. Perfect for casual wear, campus life, or tech meetups.",
				Category: "humor",
				Tags:     []string{"ai", "humor", "student", "academic", "tech"},
				Sizes:    []string{"S", "M", "L"},
				Colors:   []string{"Black", "White", "Light Blue"},
			},
			{
				ID:       "product_002",
				Type:     TypeProduct,
				Name:     "Keep Calm and Trust the Neural Network",
				Content:  "Keep Calm and Trust the Neural Network - A stylish t-shirt featuring a modern take on the classic 'Keep Calm' design with a machine learning twist. This comfortable t-shirt is made from soft, breathable cotton and features a neural network-inspired graphic. Perfect for data scientists, machine learning engineers, and anyone who appreciates the power of neural networks. The design is subtle yet distinctive, making it suitable for both casual and semi-professional settings.",
				Category: "inspirational",
				Tags:     []string{"neural network", "machine learning", "data science", "calm"},
				Sizes:    []string{"S", "M", "L"},
				Colors:   []string{"Black", "Pink"},
			},
			{
				ID:       "product_003",
				Type:     TypeProduct,
				Name:     "I'm Just Here for the Deep Learning",
				Content:  "I'm Just Here for the Deep Learning - A clever t-shirt for deep learning enthusiasts and researchers. This design combines humor with technical expertise, perfect for those who spend their days training neural networks and analyzing complex datasets. The t-shirt features a minimalist design that speaks to the focused nature of deep learning work. Made from premium cotton for maximum comfort during long coding sessions or research work.",
				Category: "humor",
				Tags:     []string{"deep learning", "neural networks", "research", "coding"},
				Sizes:    []string{"S", "M"},
				Colors:   []string{"White"},
			},
		},
		FAQ: []Document{
			{
				ID:       "faq_001",
				Type:     TypeFAQ,
				Question: "What are your shipping options and delivery times?",
				Content:  "We offer standard shipping (3-5 business days) and express shipping (1-2 business days). Standard shipping costs $5.99, while express shipping costs $12.99. All orders are processed within 24 hours of placement. You'll receive a tracking number via email once your order ships.",
				Category: "shipping",
				Tags:     []string{"shipping", "delivery", "tracking"},
			},
			{
				ID:       "faq_002",
				Type:     TypeFAQ,
				Question: "What is your return and exchange policy?",
				Content:  "We offer a 30-day return policy for all unworn, unwashed items with original tags attached. Returns are free for defective items. For size exchanges, we'll cover the return shipping cost. To initiate a return, please contact our customer service team with your order number.",
				Category: "returns",
				Tags:     []string{"returns", "exchanges", "refunds", "policy"},
			},
			{
				ID:       "faq_003",
				Type:     TypeFAQ,
				Question: "How do I determine the right size for me?",
				Content:  "Our t-shirts follow standard US sizing. For the best fit, measure your chest circumference and refer to our size chart: Small (34-36 inches), Medium (38-40 inches), Large (42-44 inches). If you're between sizes, we recommend sizing up for a more comfortable fit.",
				Category: "sizing",
				Tags:     []string{"sizing", "fit", "measurements", "size chart"},
			},
			{
				ID:       "faq_004",
				Type:     TypeFAQ,
				Question: "What payment methods do you accept?",
				Content:  "We accept all major credit cards (Visa, MasterCard, American Express, Discover), PayPal, and Apple Pay. All payments are processed securely through our encrypted payment system. We never store your payment information on our servers.",
				Category: "payment",
				Tags:     []string{"payment", "credit cards", "paypal", "security"},
			},
			{
				ID:       "faq_005",
				Type:     TypeFAQ,
				Question: "How do I care for my t-shirt?",
				Content:  "To maintain the quality and longevity of your t-shirt, machine wash cold with like colors, tumble dry low, and avoid using bleach or fabric softeners. Iron on low heat if needed. The high-quality printing will maintain its vibrant appearance for years with proper care.",
				Category: "care",
				Tags:     []string{"care", "washing", "maintenance", "longevity"},
			},
		},
		Policies: []Document{
			{
				ID:       "policy_001",
				Type:     TypePolicy,
				Name:     "Shipping Policy",
				Content:  "We ship to all 50 US states and most international locations. Standard shipping takes 3-5 business days and costs $5.99. Express shipping takes 1-2 business days and costs $12.99. International shipping costs vary by location. All orders are processed within 24 hours and include tracking information.",
				Category: "shipping",
				Tags:     []string{"shipping", "delivery", "international", "tracking"},
			},
			{
				ID:       "policy_002",
				Type:     TypePolicy,
				Name:     "Return and Refund Policy",
				Content:  "We offer a 30-day return window for all unworn, unwashed items with original tags. Returns are free for defective items. For size exchanges, we cover return shipping. Refunds are processed within 5-7 business days of receiving returned items. Sale items are final sale unless defective.",
				Category: "returns",
				Tags:     []string{"returns", "refunds", "exchanges", "defective"},
			},
			{
				ID:       "policy_003",
				Type:     TypePolicy,
				Name:     "Privacy Policy",
				Content:  "We collect only necessary information to process your orders and provide customer service. We never sell or share your personal information with third parties. Payment information is encrypted and processed securely. You can request deletion of your data at any time.",
				Category: "privacy",
				Tags:     []string{"privacy", "data", "security", "personal information"},
			},
		},
	}
}
