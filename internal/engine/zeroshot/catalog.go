package zeroshot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry pairs a label with the prose description embedded in its place.
type Entry struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
}

// DefaultCatalog returns the built-in descriptions for common contract
// provision types. Descriptions read like the clauses they stand for; the
// closer the register, the better the cosine match.
func DefaultCatalog() []Entry {
	return []Entry{
		{"amendments", "This agreement may be amended or modified only by a written instrument signed by both parties."},
		{"assignments", "Neither party may assign or transfer its rights or obligations under this agreement without the prior written consent of the other party."},
		{"confidentiality", "The receiving party shall hold all disclosed information in strict confidence and shall not disclose it to any third party."},
		{"counterparts", "This agreement may be executed in one or more counterparts, each of which is deemed an original."},
		{"entire agreements", "This agreement constitutes the entire agreement between the parties and supersedes all prior negotiations, understandings and agreements."},
		{"expenses", "Each party shall bear its own costs and expenses incurred in connection with this agreement."},
		{"governing laws", "This agreement is governed by and construed in accordance with the laws of the named jurisdiction."},
		{"indemnifications", "Each party shall indemnify and hold harmless the other party from and against any losses, claims and liabilities."},
		{"notices", "All notices under this agreement must be in writing and delivered to the addresses specified by the parties."},
		{"remedies", "The parties acknowledge that a breach may cause irreparable harm for which monetary damages are inadequate, entitling the injured party to injunctive relief."},
		{"severability", "If any provision of this agreement is held invalid or unenforceable, the remaining provisions continue in full force and effect."},
		{"survival", "The obligations of the parties under this section survive the expiration or termination of this agreement."},
		{"terminations", "Either party may terminate this agreement upon written notice to the other party."},
		{"waivers", "No failure or delay in exercising any right under this agreement operates as a waiver of that right."},
	}
}

// LoadCatalog reads label descriptions from a YAML file: a list of
// label/description pairs.
func LoadCatalog(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("zeroshot: reading catalog: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("zeroshot: parsing catalog %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("zeroshot: catalog %s is empty", path)
	}
	return entries, nil
}
