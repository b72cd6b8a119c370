package odtgen

// Package entry names and markup used by OpenDocument packages.
const (
	MimetypeEntry = "mimetype"
	ContentEntry  = "content.xml"
	SettingsEntry = "settings.xml"
	ManifestEntry = "META-INF/manifest.xml"
	PicturesDir   = "Pictures/"

	ManifestNS = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"

	// Placeholders live in hyperlink targets: tlr://$name, tlr://@{% for %}.
	PlaceholderScheme = "tlr://"
	ReferenceSigil    = '$'
	DirectiveSigil    = '@'

	// DirectiveTag is the synthetic element a directive sits in until it is
	// reduced to raw text.
	DirectiveTag = "dtl-directive"

	// ValueHook is the engine-side callable every reference token goes through.
	ValueHook = "odf_value"
)

// ODF element names the renderer knows about.
const (
	TagPlaceholder = "text:placeholder"
	TagTextBox     = "draw:text-box"
	TagFrame       = "draw:frame"
	TagAnchor      = "text:a"
	TagTableRow    = "table:table-row"
	AttrHRef       = "xlink:href"
)

// Format describes where a package keeps its parts and how placeholders are
// carried. It replaces a per-format type hierarchy with plain data.
type Format struct {
	Name string

	ContentEntry  string
	MarkerEntry   string
	ManifestEntry string
	ImagesDir     string

	// CarrierTag/CarrierAttr identify placeholder-carrying elements.
	CarrierTag  string
	CarrierAttr string
	Scheme      string

	// RequireMarker makes Load fail when MarkerEntry is absent.
	RequireMarker bool
}

// OpenDocument is the format of .odt/.ods packages.
var OpenDocument = Format{
	Name:          "odf",
	ContentEntry:  ContentEntry,
	MarkerEntry:   MimetypeEntry,
	ManifestEntry: ManifestEntry,
	ImagesDir:     PicturesDir,
	CarrierTag:    TagAnchor,
	CarrierAttr:   AttrHRef,
	Scheme:        PlaceholderScheme,
	RequireMarker: true,
}

// imageMarkup is the frame emitted for image values. Sizes are in cm.
const imageMarkup = `<draw:frame draw:name="%s" text:anchor-type="as-char" svg:width="%.3fcm" svg:height="%.3fcm" draw:z-index="0">` +
	`<draw:image xlink:href="%s" xlink:type="simple" xlink:show="embed" xlink:actuate="onLoad"/></draw:frame>`

// Text control characters in ODF.
const (
	lineBreak = "<text:line-break/>"
	tabStop   = "<text:tab/>"
)
