package models

import "time"

// Announcement is a news item shown on every user's dashboard.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Journal is a curated link to a physiotherapy publication.
type Journal struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	Year      int    `json:"year"`
	Link      string `json:"link"`
}

// DefaultJournals seeds an empty journal table.
var DefaultJournals = []Journal{
	{Title: "Journal of Orthopaedic & Sports Physical Therapy (JOSPT)", Publisher: "JOSPT", Year: 1979, Link: "https://www.jospt.org/"},
	{Title: "Physical Therapy Journal (PTJ)", Publisher: "Oxford University Press", Year: 1921, Link: "https://academic.oup.com/ptj"},
	{Title: "PubMed", Publisher: "National Library of Medicine (NLM)", Year: 1996, Link: "https://pubmed.ncbi.nlm.nih.gov/"},
	{Title: "The Lancet", Publisher: "Elsevier", Year: 1823, Link: "https://www.thelancet.com/"},
	{Title: "ResearchGate", Publisher: "ResearchGate GmbH", Year: 2008, Link: "https://www.researchgate.net/"},
	{Title: "British Journal of Sports Medicine (BJSM)", Publisher: "BMJ", Year: 1964, Link: "https://bjsm.bmj.com/"},
	{Title: "Archives of Physical Medicine and Rehabilitation", Publisher: "Elsevier", Year: 1920, Link: "https://www.archives-pmr.org/"},
}
