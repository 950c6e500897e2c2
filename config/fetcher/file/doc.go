// Package file reads setup documents from the filesystem for the config package.
//
// Setup documents are addressed by stem: the loader asks for ".config/index"
// and the fetcher appends the ".yml" extension. Every call to FromStem or
// NewFetcher reads the file again; nothing is cached between loads.
//
// Usage:
//
//	fetcher, err := file.FromStem("/srv/app/.config/index")
//	if errors.Is(err, file.ErrNotFound) {
//	    // optional target, skip it
//	}
//	data, err := fetcher.Fetch()
package file
