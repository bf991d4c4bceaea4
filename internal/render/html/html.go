// Package html renders a plan tree as a single self-contained HTML
// document with an interactive D3 diagram: pan/zoom over the whole
// graph, subtree collapse, and a click-to-open details panel.
package html

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"sparkviz/internal/insight"
	"sparkviz/internal/layout"
	"sparkviz/internal/model"
)

// Options configures the HTML renderer.
type Options struct {
	Title string
	// Height is the diagram viewport height in pixels; 0 picks a default.
	Height int
	// ContainerID overrides the random element-id suffix. Leave empty to
	// let every rendered document get its own, so several embeds can
	// share a notebook page.
	ContainerID string
}

// Render writes the interactive document for a parsed plan tree.
func Render(w io.Writer, tree *model.PlanTree, opts Options) error {
	if tree == nil || tree.Root == nil {
		return fmt.Errorf("html render: empty plan tree")
	}
	if opts.Title == "" {
		opts.Title = "query plan"
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	uid := opts.ContainerID
	if uid == "" {
		uid = uuid.NewString()[:8]
	}

	payload, err := buildPayload(tree)
	if err != nil {
		return fmt.Errorf("html render: encode plan: %w", err)
	}

	tpl, err := template.New("plan").Parse(planTemplate)
	if err != nil {
		return fmt.Errorf("html render: compile template: %w", err)
	}
	data := templateData{
		Title:   opts.Title,
		UID:     uid,
		Height:  opts.Height,
		Payload: template.JS(payload),
	}
	if err := tpl.Execute(w, data); err != nil {
		return fmt.Errorf("html render: execute template: %w", err)
	}
	return nil
}

type templateData struct {
	Title   string
	UID     string
	Height  int
	Payload template.JS
}

type document struct {
	Title   string             `json:"title"`
	Layout  *layout.Layout     `json:"layout"`
	Parents map[string]int     `json:"parents"`
	Details map[string]details `json:"details"`
}

type details struct {
	Name     string         `json:"name"`
	Kind     model.OpKind   `json:"kind"`
	Label    string         `json:"label"`
	EngineID string         `json:"engine_id,omitempty"`
	Summary  string         `json:"summary"`
	Fields   model.Fields   `json:"fields"`
	Metrics  *model.Metrics `json:"metrics,omitempty"`
}

func buildPayload(tree *model.PlanTree) ([]byte, error) {
	doc := document{
		Layout:  layout.Compute(tree),
		Parents: map[string]int{},
		Details: map[string]details{},
	}

	var walk func(node *model.PlanNode, parent int)
	walk = func(node *model.PlanNode, parent int) {
		key := strconv.Itoa(node.ID)
		doc.Parents[key] = parent
		doc.Details[key] = details{
			Name:     node.Name,
			Kind:     node.Kind,
			Label:    insight.CompactLabel(node),
			EngineID: node.EngineID,
			Summary:  insight.NormalizeWhitespace(node.Summary),
			Fields:   node.Fields,
			Metrics:  node.Metrics,
		}
		for _, child := range node.Children {
			walk(child, node.ID)
		}
	}
	walk(tree.Root, -1)

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	// </script> inside summaries would end the inline block early.
	safe := strings.ReplaceAll(string(raw), "</", "<\\/")
	return []byte(safe), nil
}

const planTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	<script src="https://cdn.jsdelivr.net/npm/d3@7/dist/d3.v7.min.js"></script>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; background: #f4f5f7; color: #202124; }
		header { background: #212a3b; color: #f4f5f7; padding: 14px 20px; display: flex; align-items: baseline; gap: 16px; }
		header h1 { margin: 0; font-size: 18px; }
		header span { opacity: 0.7; font-size: 13px; }
		.wrap { display: flex; height: {{.Height}}px; }
		.tree-container { flex: 1; position: relative; overflow: hidden; }
		.tree-container svg { width: 100%; height: 100%; cursor: grab; }
		.controls { position: absolute; top: 12px; left: 12px; display: flex; flex-direction: column; gap: 6px; }
		.controls button { width: 32px; height: 32px; border: none; border-radius: 6px; background: #fff; box-shadow: 0 2px 6px rgba(13,28,39,0.25); font-size: 18px; cursor: pointer; }
		.details-panel { width: 320px; background: #fff; border-left: 1px solid rgba(33,42,59,0.15); padding: 16px; overflow-y: auto; font-size: 13px; }
		.details-panel h2 { margin: 0 0 8px; font-size: 15px; }
		.details-panel .placeholder { color: #5b7083; }
		.details-panel dl { margin: 0 0 12px; }
		.details-panel dt { font-weight: 600; color: #5b7083; text-transform: uppercase; font-size: 11px; letter-spacing: 0.04em; margin-top: 10px; }
		.details-panel dd { margin: 2px 0 0; word-break: break-word; }
		.details-panel pre { background: #f4f5f7; border-radius: 6px; padding: 8px; white-space: pre-wrap; word-break: break-word; font-size: 12px; }
		g.node { cursor: pointer; }
		g.node rect { rx: 8; stroke: rgba(0,0,0,0.25); stroke-width: 1; }
		g.node.selected rect { stroke: #111; stroke-width: 3; }
		g.node text.label { fill: #fff; font-size: 12px; font-weight: 600; }
		g.node text.kind { fill: rgba(255,255,255,0.75); font-size: 10px; }
		g.node circle.toggle { fill: #fff; stroke: rgba(0,0,0,0.35); }
		g.node text.toggle-sign { font-size: 12px; text-anchor: middle; pointer-events: none; }
		path.edge { fill: none; stroke: #8a93a6; stroke-width: 1.5; }
	</style>
</head>
<body>
	<header>
		<h1>{{.Title}}</h1>
		<span>click a node for details · drag to pan · scroll to zoom · ± collapses a subtree</span>
	</header>
	<div class="wrap">
		<div class="tree-container" id="tree-container-{{.UID}}">
			<div class="controls">
				<button id="zoomIn-{{.UID}}" title="Zoom in">+</button>
				<button id="zoomOut-{{.UID}}" title="Zoom out">−</button>
			</div>
		</div>
		<div class="details-panel" id="details-panel-{{.UID}}">
			<h2>Details</h2>
			<div class="placeholder">Select a node to inspect its fields and runtime metrics.</div>
		</div>
	</div>
	<script>
	(function () {
		const data = {{.Payload}};
		const container = d3.select("#tree-container-{{.UID}}");
		const panel = d3.select("#details-panel-{{.UID}}");

		const svg = container.append("svg");
		const defs = svg.append("defs");
		defs.append("marker")
			.attr("id", "arrow-{{.UID}}")
			.attr("viewBox", "0 -5 10 10")
			.attr("refX", 9).attr("refY", 0)
			.attr("markerWidth", 7).attr("markerHeight", 7)
			.attr("orient", "auto")
			.append("path").attr("d", "M0,-5L10,0L0,5").attr("fill", "#8a93a6");
		const viewport = svg.append("g");

		const zoom = d3.zoom()
			.scaleExtent([0.15, 4])
			.on("zoom", (event) => viewport.attr("transform", event.transform));
		svg.call(zoom);
		svg.call(zoom.transform, d3.zoomIdentity.translate(40, 40).scale(
			Math.min(1, (container.node().clientWidth - 80) / Math.max(1, data.layout.width))));
		d3.select("#zoomIn-{{.UID}}").on("click", () => svg.transition().duration(200).call(zoom.scaleBy, 1.3));
		d3.select("#zoomOut-{{.UID}}").on("click", () => svg.transition().duration(200).call(zoom.scaleBy, 1 / 1.3));

		const byId = new Map(data.layout.nodes.map((n) => [n.id, n]));
		const children = new Map();
		for (const [id, parent] of Object.entries(data.parents)) {
			if (parent < 0) continue;
			if (!children.has(parent)) children.set(parent, []);
			children.get(parent).push(Number(id));
		}
		const collapsed = new Set();
		let selected = null;

		function hiddenSet() {
			const hidden = new Set();
			collapsed.forEach((id) => {
				const stack = (children.get(id) || []).slice();
				while (stack.length) {
					const next = stack.pop();
					hidden.add(next);
					(children.get(next) || []).forEach((c) => stack.push(c));
				}
			});
			return hidden;
		}

		function edgePath(e) {
			const a = byId.get(e.from), b = byId.get(e.to);
			const down = b.y > a.y;
			const x1 = a.x + a.width / 2, y1 = down ? a.y + a.height : a.y;
			const x2 = b.x + b.width / 2, y2 = down ? b.y : b.y + b.height;
			const my = (y1 + y2) / 2;
			return "M" + x1 + "," + y1 + " C" + x1 + "," + my + " " + x2 + "," + my + " " + x2 + "," + y2;
		}

		function showDetails(id) {
			const d = data.details[String(id)];
			panel.html("");
			panel.append("h2").text(d.label);
			const dl = panel.append("dl");
			dl.append("dt").text("Operator");
			dl.append("dd").text(d.name + " (" + d.kind + (d.engine_id ? ", #" + d.engine_id : "") + ")");
			const fields = Object.values(d.fields || {}).find((v) => v != null);
			if (fields) {
				dl.append("dt").text("Fields");
				dl.append("dd").append("pre").text(JSON.stringify(fields, null, 2));
			}
			if (d.metrics) {
				dl.append("dt").text("Runtime metrics");
				dl.append("dd").append("pre").text(JSON.stringify(d.metrics, null, 2));
			}
			dl.append("dt").text("Raw");
			dl.append("dd").append("pre").text(d.summary);
		}

		function select(id) {
			selected = selected === id ? null : id;
			if (selected === null) {
				panel.html("<h2>Details</h2><div class=\"placeholder\">Select a node to inspect its fields and runtime metrics.</div>");
			} else {
				showDetails(selected);
			}
			render();
		}

		function render() {
			const hidden = hiddenSet();
			const nodes = data.layout.nodes.filter((n) => !hidden.has(n.id));
			const edges = data.layout.edges.filter((e) => !hidden.has(e.from) && !hidden.has(e.to));

			viewport.selectAll("path.edge")
				.data(edges, (e) => e.from + "-" + e.to)
				.join("path")
				.attr("class", "edge")
				.attr("marker-end", "url(#arrow-{{.UID}})")
				.attr("d", edgePath);

			const groups = viewport.selectAll("g.node")
				.data(nodes, (n) => n.id)
				.join((enter) => {
					const g = enter.append("g").attr("class", "node");
					g.append("rect");
					g.append("text").attr("class", "label");
					g.append("text").attr("class", "kind");
					g.filter((n) => !n.leaf).append("circle").attr("class", "toggle").attr("r", 9);
					g.filter((n) => !n.leaf).append("text").attr("class", "toggle-sign");
					return g;
				});

			groups
				.attr("transform", (n) => "translate(" + n.x + "," + n.y + ")")
				.classed("selected", (n) => n.id === selected)
				.on("click", (event, n) => { event.stopPropagation(); select(n.id); });
			groups.select("rect")
				.attr("width", (n) => n.width).attr("height", (n) => n.height)
				.attr("fill", (n) => n.color);
			groups.select("text.label")
				.attr("x", 10).attr("y", 24)
				.text((n) => n.label.length > 24 ? n.label.slice(0, 23) + "…" : n.label);
			groups.select("text.kind")
				.attr("x", 10).attr("y", 42)
				.text((n) => n.kind);
			groups.select("circle.toggle")
				.attr("cx", (n) => n.width).attr("cy", 0)
				.on("click", (event, n) => {
					event.stopPropagation();
					if (collapsed.has(n.id)) collapsed.delete(n.id); else collapsed.add(n.id);
					render();
				});
			groups.select("text.toggle-sign")
				.attr("x", (n) => n.width).attr("y", 4)
				.text((n) => collapsed.has(n.id) ? "+" : "−");
		}

		svg.on("click", () => { if (selected !== null) select(selected); });
		render();
	})();
	</script>
</body>
</html>
`
