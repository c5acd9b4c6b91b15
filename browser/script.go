package browser

// refAttr tags live nodes so snapshots can be re-found.
const refAttr = "data-linkscout-ref"

// helperJS is evaluated as a function of (op, args). It is self-contained
// because every navigation discards page globals except the counter.
//
// Selectors may end in :contains("text"), which native querySelectorAll
// lacks; the helper filters on collapsed text content instead.
const helperJS = `function(op, args) {
  const REF = "` + refAttr + `";
  window.__linkscoutSeq = window.__linkscoutSeq || 0;

  function refOf(el) {
    let r = el.getAttribute(REF);
    if (!r) {
      window.__linkscoutSeq += 1;
      r = "r" + window.__linkscoutSeq;
      el.setAttribute(REF, r);
    }
    return r;
  }
  function byRef(r) {
    if (!r) return null;
    return document.querySelector("[" + REF + "=" + JSON.stringify(r) + "]");
  }
  function collapse(s) {
    return (s || "").replace(/\s+/g, " ").trim();
  }
  function unescapeCSS(s) {
    return s.replace(/\\([0-9a-fA-F]{1,6})\s?/g, function(_, hex) {
      return String.fromCodePoint(parseInt(hex, 16));
    }).replace(/\\(.)/g, "$1");
  }
  function query(root, sel) {
    const m = sel.match(/^(.*?):contains\("((?:[^"\\]|\\.)*)"\)(.*)$/);
    if (!m) return Array.from(root.querySelectorAll(sel));
    const base = m[1].trim() || "*";
    const needle = unescapeCSS(m[2]);
    let found = Array.from(root.querySelectorAll(base)).filter(function(el) {
      return collapse(el.textContent).indexOf(needle) !== -1;
    });
    const rest = m[3].trim();
    if (rest) {
      const out = [];
      found.forEach(function(el) { out.push.apply(out, query(el, rest)); });
      found = out;
    }
    return found;
  }
  function snap(el) {
    const cs = window.getComputedStyle(el);
    const r = el.getBoundingClientRect();
    const attrs = {};
    for (const a of el.attributes) {
      if (a.name !== REF) attrs[a.name] = a.value;
    }
    const ancestors = [];
    for (let p = el.parentElement; p; p = p.parentElement) {
      ancestors.push({
        tag: p.tagName.toLowerCase(),
        id: p.id || "",
        class: p.getAttribute("class") || "",
        role: p.getAttribute("role") || "",
        ariaHidden: p.getAttribute("aria-hidden") || ""
      });
    }
    return {
      ref: refOf(el),
      tag: el.tagName.toLowerCase(),
      attrs: attrs,
      text: collapse(el.innerText !== undefined ? el.innerText : el.textContent),
      style: {
        display: cs.display,
        visibility: cs.visibility,
        opacity: parseFloat(cs.opacity)
      },
      box: {x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height},
      connected: el.isConnected,
      ancestors: ancestors
    };
  }

  switch (op) {
  case "count":
    return query(document, args[0]).length;
  case "query": {
    let root = document;
    if (args[0]) {
      root = byRef(args[0]);
      if (!root) return {elements: [], detached: true};
    }
    try {
      return {elements: query(root, args[1]).map(snap)};
    } catch (e) {
      return {elements: [], error: String(e)};
    }
  }
  case "refresh": {
    const el = byRef(args[0]);
    return el ? snap(el) : null;
  }
  case "reveal": {
    const el = byRef(args[0]);
    if (!el) return false;
    el.scrollIntoView({block: "center", inline: "center"});
    return true;
  }
  case "scroll":
    window.scrollTo(0, args[0]);
    return new Promise(function(resolve) {
      window.requestAnimationFrame(function() { resolve(true); });
      window.setTimeout(function() { resolve(true); }, 50);
    });
  case "height":
    return Math.max(
      document.body ? document.body.scrollHeight : 0,
      document.documentElement ? document.documentElement.scrollHeight : 0);
  }
  throw new Error("unknown operation " + op);
}`
