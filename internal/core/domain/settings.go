package domain

// ImportSettings is the full configuration surface of the import pipeline,
// collected into one value passed to the reconciler at construction. No
// component reads configuration ambiently during processing.
type ImportSettings struct {
	// ImportClosedAgenda allows importing closed agendas and closed
	// sub-records. When false, closed meetings are skipped entirely and
	// closed bullet points get placeholder content.
	ImportClosedAgenda bool `toml:"import_closed_agenda"`

	// CommitteeWhitelist restricts import to these committee ESDH IDs.
	// Empty allows all committees.
	CommitteeWhitelist []string `toml:"committee_whitelist"`

	// UnpublishMissingAgendas retires meetings that disappeared from the
	// feed after each batch.
	UnpublishMissingAgendas bool `toml:"unpublish_missing_agendas"`

	// ProcessEnclosuresAsAttachments routes enclosures through the
	// attachment pipeline instead of the enclosure pipeline.
	ProcessEnclosuresAsAttachments bool `toml:"process_enclosures_as_attachments"`

	// ClearHTMLTagsList names the tags whose style attribute is stripped
	// from body HTML.
	ClearHTMLTagsList []string `toml:"clear_html_tags_list"`

	// ReplaceMultipleNbsp collapses runs of non-breaking spaces.
	ReplaceMultipleNbsp bool `toml:"replace_multiple_nbsp"`

	// ReplaceEmptyParagraphs collapses runs of empty paragraphs to a
	// single line break.
	ReplaceEmptyParagraphs bool `toml:"replace_empty_paragraphs"`

	// MaxSequentialBr caps consecutive br tags. Defaults to 1.
	MaxSequentialBr int `toml:"max_sequential_br"`

	// ClosedBPTitlePrefix is prepended to closed bullet point titles when
	// closed import is disabled.
	ClosedBPTitlePrefix string `toml:"closed_bp_title_prefix"`

	// ClosedBPBodyText replaces closed bullet point bodies when closed
	// import is disabled.
	ClosedBPBodyText string `toml:"closed_bp_body_text"`

	// ResumeBPATitle and DecisionBPATitle are case-insensitive attachment
	// title markers used by the presentation layer; passed through.
	ResumeBPATitle   string `toml:"resume_bpa_title"`
	DecisionBPATitle string `toml:"decision_bpa_title"`

	// EnclosuresMaxTitleLength truncates enclosure titles; 0 disables.
	EnclosuresMaxTitleLength int `toml:"enclosures_max_title_length"`

	// TextBeforeBPNumber is inserted before the bullet point number in
	// the title prefix.
	TextBeforeBPNumber string `toml:"text_before_bp_number"`

	// DotAfterBPNumber appends a dot to the bullet point number.
	DotAfterBPNumber bool `toml:"dot_after_bp_number"`

	// CreateFilesCopy copies file bytes into managed storage. When false,
	// the source location is registered directly without copying.
	CreateFilesCopy bool `toml:"create_files_copy"`

	// BannedSpecialChars are removed from raw manifest bytes before the
	// XML parse.
	BannedSpecialChars []string `toml:"banned_special_char"`

	// SanitizeUnsafeMarkup runs a strict HTML sanitiser pass over body
	// text after the cleaning pipeline.
	SanitizeUnsafeMarkup bool `toml:"sanitize_unsafe_markup"`
}

// DefaultImportSettings returns the settings defaults.
func DefaultImportSettings() ImportSettings {
	return ImportSettings{
		MaxSequentialBr: 1,
		CreateFilesCopy: true,
	}
}
