package summary

// htmlTemplate is the summary page.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-secondary: #f8fafc;
            --bg-card: #ffffff;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        body {
            font-family: Arial, sans-serif;
            margin: 20px;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
        }

        .header {
            background-color: #f0f0f0;
            padding: 20px;
            border-radius: 5px;
        }

        .metric {
            margin: 10px 0;
            padding: 10px;
            background-color: #f9f9f9;
            border-radius: 3px;
        }

        .good { color: green; }
        .warning { color: orange; }
        .error { color: red; }

        .status.pass { color: green; font-weight: 600; }
        .status.fail { color: red; font-weight: 600; }

        table {
            border-collapse: collapse;
            width: 100%;
            background: var(--bg-card);
            box-shadow: var(--shadow);
        }

        th, td {
            text-align: left;
            padding: 8px 12px;
            border-bottom: 1px solid var(--border-color);
        }

        th {
            color: var(--text-secondary);
            font-size: 0.875rem;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <p>Generated on: {{timestamp .GeneratedAt}}</p>
        <p class="status {{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}✓ PASSED{{else}}✗ FAILED{{end}}</p>
    </div>

    <div class="metrics">
        <h2>Test Summary</h2>
        <div class="metric">
            <strong>Total Requests:</strong> {{count .TotalRequests}}
        </div>
        <div class="metric">
            <strong>Failed Requests:</strong> {{count .FailedRequests}}
        </div>
        <div class="metric">
            <strong>Error Rate:</strong> <span class="{{.ErrorClass}}">{{fixed2 .ErrorRate}}%</span>
        </div>
        <div class="metric">
            <strong>Average Response Time:</strong> {{fixed2 .AvgResponseTime}}ms
        </div>
        <div class="metric">
            <strong>95th Percentile Response Time:</strong> {{fixed2 .P95ResponseTime}}ms
        </div>
        <div class="metric">
            <strong>99th Percentile Response Time:</strong> {{fixed2 .P99ResponseTime}}ms
        </div>
    </div>
{{if .Checks}}
    <div class="checks">
        <h2>Checks</h2>
        <table>
            <thead>
                <tr><th>Check</th><th>Passes</th><th>Fails</th><th>Success Rate</th></tr>
            </thead>
            <tbody>
{{- range .Checks}}
                <tr>
                    <td>{{.Name}}</td>
                    <td>{{.Passes}}</td>
                    <td class="{{if gt .Fails 0}}error{{else}}good{{end}}">{{.Fails}}</td>
                    <td>{{checkRate .}}</td>
                </tr>
{{- end}}
            </tbody>
        </table>
    </div>
{{end}}
{{- if .Thresholds}}
    <div class="thresholds">
        <h2>Thresholds</h2>
        <table>
            <thead>
                <tr><th>Metric</th><th>Threshold</th><th>Actual</th><th>Result</th></tr>
            </thead>
            <tbody>
{{- range .Thresholds}}
                <tr>
                    <td>{{.Metric}}</td>
                    <td>{{.Expression}}</td>
                    <td>{{fixed2 .Value}}</td>
                    <td class="{{if .Passed}}good{{else}}error{{end}}">{{if .Passed}}✓ pass{{else}}✗ fail{{end}}</td>
                </tr>
{{- end}}
            </tbody>
        </table>
    </div>
{{end}}
    <div class="analysis">
        <h2>Analysis</h2>
        <p><strong>Test Type:</strong> {{.Analysis.TestType}}</p>
        <p><strong>Concurrent Users:</strong> {{.Analysis.ConcurrentUsers}}</p>
        <p><strong>Duration:</strong> {{.Analysis.Duration}}</p>
        <p><strong>Target:</strong> {{.Analysis.Objective}}</p>
{{- if .Analysis.BaseURL}}
        <p><strong>Base URL:</strong> {{.Analysis.BaseURL}}</p>
{{- end}}
    </div>
</body>
</html>
`
