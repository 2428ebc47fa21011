package keywords

// stopWords lists common English words excluded from keyword counting.
// Short words are already dropped by the length filter.
var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true,
	"all": true, "also": true, "and": true, "any": true, "are": true,
	"because": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "both": true, "but": true, "can": true, "could": true,
	"did": true, "does": true, "doing": true, "down": true, "during": true,
	"each": true, "few": true, "for": true, "from": true, "further": true,
	"had": true, "has": true, "have": true, "having": true, "her": true,
	"here": true, "hers": true, "him": true, "his": true, "how": true,
	"into": true, "its": true, "itself": true, "just": true, "more": true,
	"most": true, "not": true, "now": true, "off": true, "once": true,
	"only": true, "other": true, "our": true, "ours": true, "out": true,
	"over": true, "own": true, "same": true, "she": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "the": true,
	"their": true, "theirs": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true,
	"too": true, "under": true, "until": true, "very": true, "was": true,
	"were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "whom": true, "why": true, "will": true,
	"with": true, "would": true, "you": true, "your": true, "yours": true,
}
