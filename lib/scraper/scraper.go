package scraper

// theater scrapers are read-only and mostly stateless, each fetch is independent,
// the output depends solely on the listing pages the site served for the window.
// EXCEPT for the per-run page cache and any browser session, those are implied
// inputs for each method within one run.

// each extraction generally has this structure:
// 1. turn the requested date window into one or more listing urls
//    (per-day urls, a single catalog url, or page 1 of a paginated list).
// 2. fetch (or render, for JS-heavy sites).
// 3. make assertions on the response structure (expected containers present,
//    day separators found, etc...) and treat misses as zero results.
// 4. transform markup into raw showings: title, detail link, date, time,
//    hall, ticket link, version hint.
// 5. resolve partial dates against the window, clean titles, fold showings
//    into one film record per detail link, then classify version tags in a
//    second pass over each film's collected showings.

// the part in which you transform a page into showings is declarable per site
// it is usually -> various goquery selectors into structs
//               -> regex over free text (dates, times, page counts)
//               -> data attributes

// the scraper part is then the code that guides the program through every day,
// page or tab the site exposes for the window.
// it is the thing that combines per-page parses into one venue's film list.
