// Package scraper defines the core types, collaborator contracts, and error
// taxonomy shared across the scraping service subsystems.
package scraper
