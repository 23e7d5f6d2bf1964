package scrape

import (
	"context"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/dom"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
)

// Page is the live document a routine polls.
type Page interface {
	// Snapshot captures the page as it is rendered right now.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Snapshot is one capture of a rendered page.
type Snapshot struct {
	Title string    `json:"title"`
	Text  string    `json:"text"`
	HTML  string    `json:"html"`
	Tree  *dom.Node `json:"tree"`
}

// IsChallenge reports whether the snapshot shows an anti-bot interstitial.
func (s *Snapshot) IsChallenge() bool {
	return IsChallenge(s.Title, s.Text)
}

// Fingerprint hashes the visible text so debug logs can tell whether the
// page changed between attempts.
func (s *Snapshot) Fingerprint() uint32 {
	h := murmur3.New32()
	_, _ = h.Write([]byte(s.Title))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(s.Text))
	return h.Sum32()
}

// DecodeSnapshot parses the JSON produced by SnapshotScript.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var s Snapshot
	if err := jsonutil.UnmarshalLenient(raw, &s); err != nil {
		return nil, fmt.Errorf("scrape: decode snapshot: %w", err)
	}
	if s.Tree != nil {
		s.Tree.Link()
	}
	return &s, nil
}

// SnapshotScript returns the expression evaluated inside the page. It
// serializes the document, including open shadow roots, into the node
// format read by dom.Decode and returns everything as one JSON string.
func SnapshotScript() string {
	return fmt.Sprintf(snapshotJS, defaults.MaxDOMDepth)
}

const snapshotJS = `
(function(maxDepth) {
    function kids(node, out, depth) {
        var cs = node.childNodes || [];
        for (var i = 0; i < cs.length; i++) {
            var c = ser(cs[i], depth + 1);
            if (c) out.c.push(c);
        }
    }

    function ser(node, depth) {
        if (!node || depth > maxDepth) return null;
        try {
            if (node.nodeType === 3) return {k: 3, v: node.textContent};
            if (node.nodeType === 1) {
                var tag = node.tagName.toLowerCase();
                if (tag === 'script' || tag === 'style' || tag === 'noscript') return null;
                var out = {k: 1, n: tag, a: {}, c: []};
                for (var i = 0; i < node.attributes.length; i++) {
                    out.a[node.attributes[i].name] = node.attributes[i].value;
                }
                if (node.shadowRoot) out.s = ser(node.shadowRoot, depth + 1);
                kids(node, out, depth);
                return out;
            }
            if (node.nodeType === 9 || node.nodeType === 11) {
                var frag = {k: node.nodeType, c: []};
                kids(node, frag, depth);
                return frag;
            }
        } catch (e) {}
        return null;
    }

    return JSON.stringify({
        title: document.title || '',
        text: document.body ? document.body.innerText : '',
        html: document.documentElement ? document.documentElement.outerHTML : '',
        tree: ser(document, 0)
    });
})(%d)
`
