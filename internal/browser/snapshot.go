package browser

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// buildSnapshotScript injects the hints into the capture script. The script
// runs in the page and returns a JSON object shaped like schemas.PageSnapshot.
func buildSnapshotScript(hints SnapshotHints) (string, error) {
	if hints.MaxRegions <= 0 {
		hints.MaxRegions = 8
	}
	encoded, err := json.Marshal(struct {
		Keywords     []string `json:"keywords"`
		Fingerprints []string `json:"fingerprints"`
		MaxRegions   int      `json:"maxRegions"`
	}{hints.Keywords, hints.FingerprintSelectors, hints.MaxRegions})
	if err != nil {
		return "", fmt.Errorf("encode snapshot hints: %w", err)
	}
	return fmt.Sprintf(snapshotScript, encoded), nil
}

// buildVisibilityScript resolves an index path from the document root and
// checks whether the element still renders on screen.
func buildVisibilityScript(path []int) (string, error) {
	encoded, err := json.Marshal(path)
	if err != nil {
		return "", fmt.Errorf("encode element path: %w", err)
	}
	return fmt.Sprintf(visibilityScript, encoded), nil
}

// snapshotScript captures the settled page. Region pre-selection is
// deliberately generous; scoring and rejection happen on the Go side.
const snapshotScript = `(function(hints) {
  var vw = window.innerWidth, vh = window.innerHeight;
  var seen = [];
  var picked = [];

  function pathOf(el) {
    var p = [];
    var n = el;
    while (n && n.parentElement) {
      p.unshift(Array.prototype.indexOf.call(n.parentElement.children, n));
      n = n.parentElement;
    }
    return p;
  }

  function isVisible(el) {
    var st = getComputedStyle(el);
    if (st.display === 'none' || st.visibility === 'hidden' || parseFloat(st.opacity) === 0) {
      return false;
    }
    var r = el.getBoundingClientRect();
    return r.width > 1 && r.height > 1 && r.bottom > 0 && r.top < vh;
  }

  function textOf(el) {
    return (el.innerText || '').replace(/\s+/g, ' ').trim();
  }

  function hasKeyword(text) {
    var s = text.toLowerCase();
    for (var i = 0; i < hints.keywords.length; i++) {
      if (s.indexOf(hints.keywords[i]) !== -1) return true;
    }
    return false;
  }

  function collectClickables(root) {
    var out = [];
    var sel = 'a, button, input[type="button"], input[type="submit"], [role="button"], [role="link"]';
    var nodes = root.querySelectorAll(sel);
    for (var i = 0; i < nodes.length && out.length < 24; i++) {
      var c = nodes[i];
      if (!isVisible(c)) continue;
      var cb = c.getBoundingClientRect();
      var mid = document.elementFromPoint(cb.x + cb.width / 2, cb.y + cb.height / 2);
      if (mid && !c.contains(mid) && !mid.contains(c)) continue;
      var tag = c.tagName.toLowerCase();
      var role = c.getAttribute('role') || '';
      out.push({
        path: pathOf(c),
        tag: tag,
        kind: (tag === 'a' || role === 'link') ? 'link' : 'button',
        text: textOf(c).slice(0, 200),
        href: c.href || '',
        role: role,
        box: {x: cb.x, y: cb.y, w: cb.width, h: cb.height}
      });
    }
    return out;
  }

  function addRegion(el) {
    if (!el || el === document.documentElement || el === document.body) return;
    if (seen.indexOf(el) !== -1) return;
    seen.push(el);
    if (picked.length >= hints.maxRegions) return;
    if (!isVisible(el)) return;
    var st = getComputedStyle(el);
    var r = el.getBoundingClientRect();
    picked.push({
      path: pathOf(el),
      tag: el.tagName.toLowerCase(),
      id: el.id || '',
      classes: Array.prototype.slice.call(el.classList),
      role: el.getAttribute('role') || '',
      text: textOf(el).slice(0, 2000),
      box: {x: r.x, y: r.y, w: r.width, h: r.height},
      position: st.position,
      zIndex: parseInt(st.zIndex, 10) || 0,
      visible: true,
      clickables: collectClickables(el)
    });
  }

  for (var f = 0; f < hints.fingerprints.length; f++) {
    try {
      var matches = document.querySelectorAll(hints.fingerprints[f]);
      for (var m = 0; m < matches.length; m++) addRegion(matches[m]);
    } catch (e) { /* bad selector in a fingerprint, skip it */ }
  }

  var containers = document.querySelectorAll('div, section, aside, footer, header, form, dialog');
  for (var i = 0; i < containers.length; i++) {
    if (picked.length >= hints.maxRegions) break;
    var el = containers[i];
    var st = getComputedStyle(el);
    var role = el.getAttribute('role');
    if (st.position === 'fixed' || st.position === 'sticky' ||
        role === 'dialog' || role === 'alertdialog' || role === 'banner') {
      if (hasKeyword(textOf(el))) addRegion(el);
    }
  }

  if (picked.length < hints.maxRegions && document.body) {
    var walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
    var node, hits = 0;
    while ((node = walker.nextNode()) && hits < 64 && picked.length < hints.maxRegions) {
      var t = node.textContent;
      if (!t || t.length < 8 || !hasKeyword(t)) continue;
      hits++;
      var anc = node.parentElement;
      var chosen = null;
      while (anc && anc !== document.body) {
        var ast = getComputedStyle(anc);
        if (ast.position === 'fixed' || ast.position === 'sticky') { chosen = anc; break; }
        var ar = anc.getBoundingClientRect();
        if (ar.width >= vw * 0.95 && ar.height < vh * 0.5) chosen = anc;
        anc = anc.parentElement;
      }
      if (chosen) addRegion(chosen);
    }
  }

  return {
    url: location.href,
    viewportWidth: vw,
    viewportHeight: vh,
    bodyText: (document.body ? (document.body.innerText || '') : '').replace(/\s+/g, ' ').slice(0, 6000),
    cmpDefined: typeof window.__cmp === 'function' || typeof window.__tcfapi === 'function',
    regions: picked
  };
})(%s)`

const visibilityScript = `(function(path) {
  var el = document.documentElement;
  for (var i = 0; i < path.length; i++) {
    if (!el || !el.children || path[i] >= el.children.length) return false;
    el = el.children[path[i]];
  }
  if (!el) return false;
  var st = getComputedStyle(el);
  if (st.display === 'none' || st.visibility === 'hidden' || parseFloat(st.opacity) === 0) {
    return false;
  }
  var r = el.getBoundingClientRect();
  return r.width > 1 && r.height > 1 && r.bottom > 0 && r.top < window.innerHeight;
})(%s)`
