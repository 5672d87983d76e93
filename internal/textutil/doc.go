// Package textutil turns prompts into file names and compares them.
//
// SafeFileName reduces an arbitrary prompt to a short ASCII name using NFKD
// folding, the same shape the generation server gives its own output files.
// UniquePath adds "(n)" suffixes until a name is free. PromptIndex ranks
// history prompts against a search query by rarity-weighted cosine
// similarity.
package textutil
