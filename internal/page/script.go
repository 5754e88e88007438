package page

// metricsScript is evaluated in the page to build a Metrics snapshot. The
// shape of the returned object must stay in sync with the Metrics struct.
const metricsScript = `(() => {
  const parseColor = (value) => {
    const m = /rgba?\((\d+),\s*(\d+),\s*(\d+)(?:,\s*([\d.]+))?\)/.exec(value || '');
    if (!m) return null;
    if (m[4] !== undefined && parseFloat(m[4]) === 0) return null;
    return { r: parseInt(m[1], 10), g: parseInt(m[2], 10), b: parseInt(m[3], 10) };
  };

  const effectiveBackground = (el) => {
    let node = el;
    while (node && node !== document.documentElement) {
      const c = parseColor(getComputedStyle(node).backgroundColor);
      if (c) return c;
      node = node.parentElement;
    }
    return { r: 255, g: 255, b: 255 };
  };

  const describe = (el, fallback) => {
    if (el.id) return '#' + el.id;
    if (el.className && typeof el.className === 'string') {
      const cls = el.className.trim().split(/\s+/)[0];
      if (cls) return '.' + cls;
    }
    return fallback;
  };

  // Sampled computed colors for text-bearing elements.
  const styles = [];
  const sampleSelectors = ['body', 'h1', 'h2', 'p', 'a', 'nav a', 'footer'];
  for (const sel of sampleSelectors) {
    const el = document.querySelector(sel);
    if (!el) continue;
    styles.push({
      selector: sel,
      color: parseColor(getComputedStyle(el).color),
      background: effectiveBackground(el),
    });
  }

  // First hero-like element.
  const heroSelectors = ['.hero', '.mv', '.main-visual', '.keyvisual', '[class*="hero"]'];
  let heroHeight = 0;
  let heroSelector = '';
  for (const sel of heroSelectors) {
    const el = document.querySelector(sel);
    if (el) {
      heroHeight = el.getBoundingClientRect().height;
      heroSelector = describe(el, sel);
      break;
    }
  }

  // Carousel-like widgets.
  const carouselSelectors = ['.carousel', '[data-carousel]', '.swiper', '.slick-slider', '.slider'];
  const seen = new Set();
  const carousels = [];
  for (const sel of carouselSelectors) {
    for (const el of document.querySelectorAll(sel)) {
      if (seen.has(el)) continue;
      seen.add(el);
      const slides = el.querySelectorAll('.slide, .swiper-slide, .slick-slide, li, [data-slide]');
      carousels.push({
        selector: describe(el, sel),
        slideCount: slides.length,
        hasPauseControl: !!el.querySelector('[class*="pause"], [aria-label*="pause" i], button[class*="stop"]'),
        autoplay: el.hasAttribute('data-autoplay') || !!el.querySelector('[data-autoplay]'),
      });
      if (carousels.length >= 5) break;
    }
    if (carousels.length >= 5) break;
  }

  // Coverage counts.
  const images = Array.from(document.querySelectorAll('img'));
  const links = Array.from(document.querySelectorAll('a[href]'));
  const navLinks = Array.from(document.querySelectorAll('nav a'));
  const external = links.filter((a) => {
    try { return new URL(a.href).host !== location.host; } catch { return false; }
  });
  const underlined = links.filter((a) =>
    getComputedStyle(a).textDecorationLine.includes('underline'));
  const markedExternal = external.filter((a) =>
    a.target === '_blank' || !!a.querySelector('[class*="external"], [class*="blank"]'));
  const labeledNav = navLinks.filter((a) => (a.textContent || '').trim().length > 0);

  const coverage = {
    image_alt: {
      matching: images.filter((img) => (img.getAttribute('alt') || '').trim().length > 0).length,
      total: images.length,
    },
    link_decoration: { matching: underlined.length, total: links.length },
    external_link_marked: { matching: markedExternal.length, total: external.length },
    nav_label: { matching: labeledNav.length, total: navLinks.length },
  };

  return {
    url: location.href,
    viewportHeight: window.innerHeight,
    heroHeight: heroHeight,
    heroSelector: heroSelector,
    styles: styles,
    carousels: carousels,
    coverage: coverage,
  };
})()`
