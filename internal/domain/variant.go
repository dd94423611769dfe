package domain

// PromptPackage is one resolved image prompt plus the negative prompt and the
// copy variant it was built from. One-to-one with a variant index in a run.
type PromptPackage struct {
	ImagePrompt    string      `json:"image_prompt"`
	NegativePrompt string      `json:"negative_prompt"`
	CopyVariant    CopyVariant `json:"copy_variant"`
}

// ImageVariant is the per-variant outcome: where the image ended up and what
// the quality check observed. Mutated only by the QC loop before being frozen
// into a RunResult.
type ImageVariant struct {
	Index     int           `json:"index"`
	Prompt    PromptPackage `json:"prompt"`
	ImagePath string        `json:"image_path"`
	QCPassed  bool          `json:"qc_passed"`
	QCText    string        `json:"qc_text,omitempty"`
}

// RunResult is the terminal, immutable artifact of a successful run.
type RunResult struct {
	Brief      CreativeBrief  `json:"brief"`
	BrandStyle BrandStyle     `json:"brand_style"`
	Variants   []ImageVariant `json:"variants"`
	OutputDir  string         `json:"output_dir"`
}
