package domain

import "encoding/json"

// BlockType tags the payload carried by a content block.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockImage       BlockType = "image"
	BlockList        BlockType = "list"
	BlockQuote       BlockType = "quote"
	BlockVideo       BlockType = "video"
	BlockTestimonial BlockType = "testimonial"
	BlockStats       BlockType = "stats"
	BlockTimeline    BlockType = "timeline"
	BlockFAQ         BlockType = "faq"
	BlockCTA         BlockType = "cta"
	BlockFile        BlockType = "file"
	BlockMap         BlockType = "map"
	BlockAward       BlockType = "award"
	BlockProgramme   BlockType = "programme"
	BlockServices    BlockType = "services"
	BlockSponsorship BlockType = "sponsorship"
	BlockImpact      BlockType = "impact"
	BlockTeam        BlockType = "team"
)

// BlockTypes lists every supported tag in editor order.
var BlockTypes = []BlockType{
	BlockText, BlockImage, BlockList, BlockQuote, BlockVideo, BlockTestimonial,
	BlockStats, BlockTimeline, BlockFAQ, BlockCTA, BlockFile, BlockMap,
	BlockAward, BlockProgramme, BlockServices, BlockSponsorship, BlockImpact, BlockTeam,
}

var payloadFactories = map[BlockType]func() Payload{
	BlockText:        func() Payload { return &TextContent{} },
	BlockImage:       func() Payload { return &ImageContent{} },
	BlockList:        func() Payload { return &ListContent{} },
	BlockQuote:       func() Payload { return &QuoteContent{} },
	BlockVideo:       func() Payload { return &VideoContent{} },
	BlockTestimonial: func() Payload { return &TestimonialContent{} },
	BlockStats:       func() Payload { return &StatsContent{} },
	BlockTimeline:    func() Payload { return &TimelineContent{} },
	BlockFAQ:         func() Payload { return &FAQContent{} },
	BlockCTA:         func() Payload { return &CTAContent{} },
	BlockFile:        func() Payload { return &FileContent{} },
	BlockMap:         func() Payload { return &MapContent{} },
	BlockAward:       func() Payload { return &AwardContent{} },
	BlockProgramme:   func() Payload { return &ProgrammeContent{} },
	BlockServices:    func() Payload { return &ServicesContent{} },
	BlockSponsorship: func() Payload { return &SponsorshipContent{} },
	BlockImpact:      func() Payload { return &ImpactContent{} },
	BlockTeam:        func() Payload { return &TeamContent{} },
}

// Valid reports whether t is one of the known tags.
func (t BlockType) Valid() bool {
	_, ok := payloadFactories[t]
	return ok
}

// Payload is the per-type content of a block. The set of implementations is
// closed; renderers switch over the concrete types.
type Payload interface {
	Kind() BlockType
	payload()
}

// NewPayload returns an empty payload for t, or an UnknownContent when t is
// not a known tag.
func NewPayload(t BlockType) Payload {
	if f, ok := payloadFactories[t]; ok {
		return f()
	}
	return &UnknownContent{Tag: t, Fields: map[string]json.RawMessage{}}
}

type TextContent struct {
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text,omitempty"`
}

type ImageContent struct {
	URL     string `json:"url,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type ListContent struct {
	Title   string   `json:"title,omitempty"`
	Items   []string `json:"items,omitempty"`
	Ordered bool     `json:"ordered,omitempty"`
}

type QuoteContent struct {
	Text   string `json:"text,omitempty"`
	Author string `json:"author,omitempty"`
	Role   string `json:"role,omitempty"`
}

type VideoContent struct {
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type TestimonialContent struct {
	Quote string `json:"quote,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	Image string `json:"image,omitempty"`
}

type Stat struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type StatsContent struct {
	Heading string `json:"heading,omitempty"`
	Stats   []Stat `json:"stats,omitempty"`
}

type TimelineEvent struct {
	Year        string `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type TimelineContent struct {
	Heading string          `json:"heading,omitempty"`
	Events  []TimelineEvent `json:"events,omitempty"`
}

type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FAQContent struct {
	Heading string    `json:"heading,omitempty"`
	Items   []FAQItem `json:"items,omitempty"`
}

type CTAContent struct {
	Heading    string `json:"heading,omitempty"`
	Text       string `json:"text,omitempty"`
	ButtonText string `json:"buttonText,omitempty"`
	ButtonURL  string `json:"buttonUrl,omitempty"`
}

type FileContent struct {
	URL         string `json:"url,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Size        string `json:"size,omitempty"`
}

type MapContent struct {
	Heading  string `json:"heading,omitempty"`
	Address  string `json:"address,omitempty"`
	EmbedURL string `json:"embedUrl,omitempty"`
}

type AwardContent struct {
	Title        string `json:"title,omitempty"`
	Organization string `json:"organization,omitempty"`
	Year         string `json:"year,omitempty"`
	Description  string `json:"description,omitempty"`
	Image        string `json:"image,omitempty"`
}

type Programme struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Duration      string `json:"duration,omitempty"`
	Beneficiaries string `json:"beneficiaries,omitempty"`
}

type ProgrammeContent struct {
	Heading    string      `json:"heading,omitempty"`
	Programmes []Programme `json:"programmes,omitempty"`
}

type Service struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

type ServicesContent struct {
	Heading  string    `json:"heading,omitempty"`
	Services []Service `json:"services,omitempty"`
}

type SponsorshipTier struct {
	Name     string   `json:"name"`
	Amount   string   `json:"amount"`
	Benefits []string `json:"benefits,omitempty"`
}

type SponsorshipContent struct {
	Heading     string            `json:"heading,omitempty"`
	Description string            `json:"description,omitempty"`
	Tiers       []SponsorshipTier `json:"tiers,omitempty"`
}

type ImpactMetric struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

type ImpactContent struct {
	Heading string         `json:"heading,omitempty"`
	Metrics []ImpactMetric `json:"metrics,omitempty"`
}

type TeamMember struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Bio   string `json:"bio,omitempty"`
	Image string `json:"image,omitempty"`
}

type TeamContent struct {
	Heading string       `json:"heading,omitempty"`
	Members []TeamMember `json:"members,omitempty"`
}

// UnknownContent holds the payload of a block whose tag is not recognised.
// The raw fields are kept so the document round-trips unchanged.
type UnknownContent struct {
	Tag    BlockType
	Fields map[string]json.RawMessage
}

func (u *UnknownContent) MarshalJSON() ([]byte, error) {
	if u.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.Fields)
}

func (*TextContent) Kind() BlockType        { return BlockText }
func (*ImageContent) Kind() BlockType       { return BlockImage }
func (*ListContent) Kind() BlockType        { return BlockList }
func (*QuoteContent) Kind() BlockType       { return BlockQuote }
func (*VideoContent) Kind() BlockType       { return BlockVideo }
func (*TestimonialContent) Kind() BlockType { return BlockTestimonial }
func (*StatsContent) Kind() BlockType       { return BlockStats }
func (*TimelineContent) Kind() BlockType    { return BlockTimeline }
func (*FAQContent) Kind() BlockType         { return BlockFAQ }
func (*CTAContent) Kind() BlockType         { return BlockCTA }
func (*FileContent) Kind() BlockType        { return BlockFile }
func (*MapContent) Kind() BlockType         { return BlockMap }
func (*AwardContent) Kind() BlockType       { return BlockAward }
func (*ProgrammeContent) Kind() BlockType   { return BlockProgramme }
func (*ServicesContent) Kind() BlockType    { return BlockServices }
func (*SponsorshipContent) Kind() BlockType { return BlockSponsorship }
func (*ImpactContent) Kind() BlockType      { return BlockImpact }
func (*TeamContent) Kind() BlockType        { return BlockTeam }
func (u *UnknownContent) Kind() BlockType   { return u.Tag }

func (*TextContent) payload()        {}
func (*ImageContent) payload()       {}
func (*ListContent) payload()        {}
func (*QuoteContent) payload()       {}
func (*VideoContent) payload()       {}
func (*TestimonialContent) payload() {}
func (*StatsContent) payload()       {}
func (*TimelineContent) payload()    {}
func (*FAQContent) payload()         {}
func (*CTAContent) payload()         {}
func (*FileContent) payload()        {}
func (*MapContent) payload()         {}
func (*AwardContent) payload()       {}
func (*ProgrammeContent) payload()   {}
func (*ServicesContent) payload()    {}
func (*SponsorshipContent) payload() {}
func (*ImpactContent) payload()      {}
func (*TeamContent) payload()        {}
func (*UnknownContent) payload()     {}
