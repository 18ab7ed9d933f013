package rod

// JS evaluated in the live page. The selectors and attribute names mirror
// the offline scanner; keep the two in sync when the site's markup shifts.

// insertFlagJS inserts a glyph span after the handle's anchor inside each
// matching container and marks the container done. Resolves to true if at
// least one glyph was inserted.
const insertFlagJS = `(handle, glyph) => {
	const STATE = 'data-flagup-state';
	const GLYPH = 'data-flagup-glyph';
	const containers = document.querySelectorAll(
		'article[data-testid="tweet"], div[data-testid="UserCell"], div[data-testid="User-Name"]'
	);
	let inserted = false;
	for (const container of containers) {
		const state = container.getAttribute(STATE);
		if (state === 'done' || state === 'failed-permanent') continue;

		let anchor = container.querySelector('a[href="/' + handle + '"]');
		if (!anchor) {
			for (const a of container.querySelectorAll('a')) {
				if (a.textContent.trim().toLowerCase() === '@' + handle.toLowerCase()) {
					anchor = a;
					break;
				}
			}
		}
		if (!anchor) continue;

		let next = anchor.nextElementSibling;
		let present = false;
		while (next) {
			if (next.hasAttribute(GLYPH)) { present = true; break; }
			next = next.nextElementSibling;
		}
		if (!present) {
			const span = document.createElement('span');
			span.setAttribute(GLYPH, 'true');
			span.textContent = ' ' + glyph;
			anchor.insertAdjacentElement('afterend', span);
		}
		container.setAttribute(STATE, 'done');
		inserted = true;
	}
	return inserted;
}`

// markStateJS sets the processing state on every container holding the
// handle's anchor, leaving terminal states alone. Anchors are matched the
// same way insertFlagJS matches them, so a container that can be annotated
// can always be marked too.
const markStateJS = `(handle, state) => {
	const STATE = 'data-flagup-state';
	const containers = document.querySelectorAll(
		'article[data-testid="tweet"], div[data-testid="UserCell"], div[data-testid="User-Name"]'
	);
	for (const container of containers) {
		const current = container.getAttribute(STATE);
		if (current === 'done' || current === 'failed-permanent') continue;

		let anchor = container.querySelector('a[href="/' + handle + '"]');
		if (!anchor) {
			for (const a of container.querySelectorAll('a')) {
				if (a.textContent.trim().toLowerCase() === '@' + handle.toLowerCase()) {
					anchor = a;
					break;
				}
			}
		}
		if (anchor) {
			container.setAttribute(STATE, state);
		}
	}
}`

// observeMutationsJS installs a mutation observer that reports batches
// adding nodes through the exposed callback. Attribute changes are ignored
// so our own state marking never feeds back into the scan loop.
const observeMutationsJS = `() => {
	if (window.__flagupObserving) return;
	window.__flagupObserving = true;
	const observer = new MutationObserver((mutations) => {
		for (const m of mutations) {
			if (m.addedNodes.length > 0) {
				window.flagupMutated();
				return;
			}
		}
	});
	observer.observe(document.body, { childList: true, subtree: true });
}`
