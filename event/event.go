// Package event defines the structured types every collector, the tracker,
// and the transport pipeline agree on. This is the public data-model
// contract: any consumer of a shipped batch imports this package.
package event

// Type is the event-type enum.
type Type string

const (
	TypePageView     Type = "page_view"
	TypePageLeave    Type = "page_leave"
	TypeClick        Type = "click"
	TypeScroll       Type = "scroll"
	TypeInput        Type = "input"
	TypeFormSubmit   Type = "form_submit"
	TypeNavigation   Type = "navigation"
	TypeCustom       Type = "custom"
	TypeExposure     Type = "exposure"
	TypeError        Type = "error"
	TypePerformance  Type = "performance"
	TypeNetwork      Type = "network"
)

// Priority controls how urgently an event should reach the transport.
type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityNormal    Priority = "NORMAL"
	PriorityHigh      Priority = "HIGH"
	PriorityImmediate Priority = "IMMEDIATE"
)

// TrackEvent is the universal record produced by every collector and
// shipped by transport. Required fields are filled in by the tracker
// during handleEvent; a collector only needs to set Type, Name, and Data.
type TrackEvent struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
	PageID    string `json:"pageId"`

	PageTitle string          `json:"pageTitle,omitempty"`
	Data      interface{}     `json:"data,omitempty"`
	Target    *ElementInfo    `json:"target,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Device    *DeviceInfo     `json:"device,omitempty"`
	Priority  Priority        `json:"priority,omitempty"`
	RetryCount int            `json:"retryCount,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Route      *RouteInfo     `json:"route,omitempty"`
	Component  *ComponentInfo `json:"component,omitempty"`
	PageContext map[string]any `json:"pageContext,omitempty"`
}

// ElementInfo is extracted from a DOM node at emission time.
type ElementInfo struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id,omitempty"`
	ClassName  string            `json:"className,omitempty"`
	Text       string            `json:"text,omitempty"`
	XPath      string            `json:"xpath,omitempty"`
	CSSPath    string            `json:"cssPath,omitempty"`
	Rect       *Rect             `json:"rect,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"` // data-track-* only
	Parent     *ParentSummary    `json:"parent,omitempty"`
	Component  *ComponentInfo    `json:"component,omitempty"`
	Link       *LinkInfo         `json:"link,omitempty"`
	Form       *FormFieldInfo    `json:"form,omitempty"`
	Role       string            `json:"role,omitempty"`
	AriaLabel  string            `json:"ariaLabel,omitempty"`
	Depth      int               `json:"depth,omitempty"`
	Region     string            `json:"region,omitempty"`
}

// Rect is a viewport-relative bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ParentSummary is a minimal description of an element's parent.
type ParentSummary struct {
	Tag       string `json:"tag,omitempty"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
}

// LinkInfo describes an anchor element.
type LinkInfo struct {
	Href     string `json:"href,omitempty"`
	Target   string `json:"target,omitempty"`
	External bool   `json:"external,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// FormFieldInfo describes a form control element.
type FormFieldInfo struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ComponentInfo is best-effort UI-framework component context. Absence
// yields a nil pointer, never an error — the owning framework's internal
// back-pointer field is not guaranteed to exist.
type ComponentInfo struct {
	Name      string         `json:"name,omitempty"`
	Chain     []string       `json:"chain,omitempty"`
	SafeProps map[string]any `json:"safeProps,omitempty"`
}

// RouteInfo is extracted from a router instance hanging off the app root.
type RouteInfo struct {
	Path    string            `json:"path,omitempty"`
	Name    string            `json:"name,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Hash    string            `json:"hash,omitempty"`
	Meta    map[string]any    `json:"meta,omitempty"`
	Chain   []string          `json:"chain,omitempty"`
}

// DeviceInfo is captured once at tracker install.
type DeviceInfo struct {
	UserAgent            string `json:"userAgent"`
	ScreenWidth          int    `json:"screenWidth"`
	ScreenHeight         int    `json:"screenHeight"`
	ViewportWidth        int    `json:"viewportWidth"`
	ViewportHeight       int    `json:"viewportHeight"`
	DevicePixelRatio     float64 `json:"devicePixelRatio"`
	Language             string `json:"language"`
	Timezone             string `json:"timezone"`
	Platform             string `json:"platform"`
	IsTouchDevice        bool   `json:"isTouchDevice"`
	IsMobile             bool   `json:"isMobile"`
	NetworkEffectiveType string `json:"networkEffectiveType,omitempty"`
	DeviceMemory         float64 `json:"deviceMemory,omitempty"`
	HardwareConcurrency  int    `json:"hardwareConcurrency,omitempty"`
}
