// Package websearch groups the live web search providers. Each subpackage
// implements driven.WebSearchProvider for one API:
//
//   - tavily: Tavily search API
//   - serper: Serper Google results API
//   - google: Google Programmable Search (Custom Search JSON API)
//   - gemini: Gemini with Google Search grounding
//
// Providers return raw results. Normalisation into candidates, URL
// de-duplication and rate limiting happen in the web search service.
package websearch
