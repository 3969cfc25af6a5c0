package api

import (
	"net/http"
)

const operatorUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Gridworks - Operator UI</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'SF Mono', ui-monospace, monospace;
            background: #10141f;
            color: #eee;
            height: 100vh;
            display: flex;
            flex-direction: column;
        }
        header {
            background: #1a2233;
            padding: 12px 20px;
            border-bottom: 1px solid #2b3a55;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #status {
            padding: 4px 10px;
            border-radius: 4px;
            font-size: 12px;
        }
        #status.connected { background: #1b4332; color: #95d5b2; }
        #status.disconnected { background: #7f1d1d; color: #fca5a5; }
        #status.connecting { background: #78350f; color: #fcd34d; }
        main {
            flex: 1;
            overflow: hidden;
            display: flex;
            flex-direction: column;
        }
        #events {
            flex: 1;
            overflow-y: auto;
            padding: 10px;
        }
        .event {
            padding: 8px 12px;
            margin-bottom: 4px;
            background: #1a2233;
            border-radius: 4px;
            border-left: 3px solid #2b3a55;
            font-size: 13px;
            display: flex;
            gap: 12px;
            align-items: baseline;
        }
        .event.level-error { border-left-color: #dc2626; background: #1f1515; }
        .event.level-info { border-left-color: #2563eb; }
        .event.scope-machine { border-left-color: #7c3aed; }
        .event.scope-tick { border-left-color: #059669; }
        .event.scope-chain { border-left-color: #d97706; }
        .event.scope-operator { border-left-color: #db2777; }
        .event.scope-panel { border-left-color: #0891b2; }
        .ts { color: #6b7280; font-size: 11px; min-width: 90px; }
        .name { color: #60a5fa; font-weight: bold; min-width: 140px; }
        .id { color: #a78bfa; }
        .msg { color: #9ca3af; }
        footer {
            background: #1a2233;
            padding: 8px 20px;
            border-top: 1px solid #2b3a55;
            font-size: 11px;
            color: #6b7280;
        }
        .controls {
            background: #1a2233;
            padding: 10px 20px;
            border-bottom: 1px solid #2b3a55;
            display: flex;
            gap: 10px;
            align-items: center;
            flex-wrap: wrap;
        }
        .control-group {
            display: flex;
            gap: 6px;
            align-items: center;
        }
        .control-group label {
            font-size: 12px;
            color: #9ca3af;
        }
        .control-group input {
            background: #10141f;
            border: 1px solid #2b3a55;
            border-radius: 4px;
            padding: 6px 10px;
            color: #eee;
            font-family: 'SF Mono', ui-monospace, monospace;
            font-size: 12px;
            width: 120px;
        }
        .control-group input:focus {
            outline: none;
            border-color: #2563eb;
        }
        .control-group button {
            background: #2563eb;
            border: none;
            border-radius: 4px;
            padding: 6px 12px;
            color: #fff;
            font-family: 'SF Mono', ui-monospace, monospace;
            font-size: 12px;
            cursor: pointer;
        }
        .control-group button:hover {
            background: #1d4ed8;
        }
        .control-group button:disabled {
            background: #374151;
            cursor: not-allowed;
        }
        .control-group button.tick {
            background: #059669;
        }
        .control-group button.tick:hover {
            background: #047857;
        }
        .control-group input.small {
            width: 60px;
        }
        .divider {
            width: 1px;
            height: 24px;
            background: #2b3a55;
            margin: 0 6px;
        }
        #result {
            font-size: 12px;
            padding: 4px 10px;
            border-radius: 4px;
            display: none;
        }
        #result.success {
            display: inline;
            background: #1b4332;
            color: #95d5b2;
        }
        #result.error {
            display: inline;
            background: #7f1d1d;
            color: #fca5a5;
        }
    </style>
</head>
<body>
    <header>
        <h1>Gridworks - Event Stream</h1>
        <span id="status" class="disconnected">Disconnected</span>
    </header>
    <div class="controls">
        <div class="control-group">
            <button id="tickBtn" class="tick" onclick="tick()">Tick</button>
        </div>
        <div class="divider"></div>
        <div class="control-group">
            <label>Place:</label>
            <input type="text" id="placeName" class="small" placeholder="name">
            <input type="text" id="placeRecipe" placeholder="recipe">
            <input type="text" id="placeX" class="small" placeholder="x">
            <input type="text" id="placeY" class="small" placeholder="y">
            <button id="placeBtn" onclick="place()">Place</button>
        </div>
        <div class="divider"></div>
        <div class="control-group">
            <label>Connect:</label>
            <input type="text" id="connFrom" class="small" placeholder="from">
            <input type="text" id="connTo" class="small" placeholder="to">
            <button id="connBtn" onclick="connectMachines()">Connect</button>
        </div>
        <span id="result"></span>
    </div>
    <main>
        <div id="events"></div>
    </main>
    <footer>
        <span id="count">0</span> events | WebSocket: /ws
    </footer>

    <script>
        const eventsDiv = document.getElementById('events');
        const statusEl = document.getElementById('status');
        const countEl = document.getElementById('count');
        let eventCount = 0;
        let ws = null;
        let reconnectTimer = null;

        function formatTime(ts) {
            try {
                const d = new Date(ts);
                return d.toLocaleTimeString('en-US', { hour12: false });
            } catch {
                return ts;
            }
        }

        function getScope(name) {
            const parts = name.split('.');
            return parts[0] || '';
        }

        function renderEvent(e) {
            if (!e.event) return; // drag replies, not events
            const div = document.createElement('div');
            div.className = 'event level-' + e.level + ' scope-' + getScope(e.event);

            let idText = '';
            if (e.fields) {
                if (e.fields.machine_id !== undefined) idText = 'machine ' + e.fields.machine_id;
                else if (e.fields.panel_id) idText = e.fields.panel_id;
                else if (e.fields.tick !== undefined) idText = 'tick ' + e.fields.tick;
            }

            div.innerHTML =
                '<span class="ts">' + formatTime(e.ts) + '</span>' +
                '<span class="name">' + e.event + '</span>' +
                (idText ? '<span class="id">' + idText + '</span>' : '') +
                (e.msg ? '<span class="msg">' + e.msg + '</span>' : '');

            eventsDiv.appendChild(div);
            eventCount++;
            countEl.textContent = eventCount;

            // Auto-scroll to bottom
            eventsDiv.scrollTop = eventsDiv.scrollHeight;

            // Limit displayed events to prevent memory issues
            while (eventsDiv.children.length > 500) {
                eventsDiv.removeChild(eventsDiv.firstChild);
            }
        }

        function setStatus(status) {
            statusEl.className = status;
            statusEl.textContent = status.charAt(0).toUpperCase() + status.slice(1);
        }

        function connect() {
            if (ws && ws.readyState === WebSocket.OPEN) return;

            setStatus('connecting');

            const protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
            ws = new WebSocket(protocol + '//' + location.host + '/ws');

            ws.onopen = function() {
                setStatus('connected');
                if (reconnectTimer) {
                    clearTimeout(reconnectTimer);
                    reconnectTimer = null;
                }
            };

            ws.onmessage = function(msg) {
                try {
                    const e = JSON.parse(msg.data);
                    renderEvent(e);
                } catch (err) {
                    console.error('Failed to parse event:', err);
                }
            };

            ws.onclose = function() {
                setStatus('disconnected');
                scheduleReconnect();
            };

            ws.onerror = function(err) {
                console.error('WebSocket error:', err);
                ws.close();
            };
        }

        function scheduleReconnect() {
            if (reconnectTimer) return;
            reconnectTimer = setTimeout(function() {
                reconnectTimer = null;
                connect();
            }, 3000);
        }

        // Initial connection
        connect();

        const resultEl = document.getElementById('result');

        function showResult(success, message) {
            resultEl.className = success ? 'success' : 'error';
            resultEl.textContent = message;
            setTimeout(function() {
                resultEl.className = '';
                resultEl.textContent = '';
            }, 5000);
        }

        function postJSON(url, body, btn, okMsg) {
            btn.disabled = true;
            fetch(url, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body)
            })
            .then(function(res) { return res.json(); })
            .then(function(data) {
                btn.disabled = false;
                if (data.ok) {
                    showResult(true, okMsg(data));
                } else {
                    showResult(false, data.error || 'Request failed');
                }
            })
            .catch(function(err) {
                btn.disabled = false;
                showResult(false, 'Network error');
            });
        }

        function tick() {
            postJSON('/operator/tick', {}, document.getElementById('tickBtn'),
                function() { return 'Ticked'; });
        }

        function place() {
            const name = document.getElementById('placeName').value.trim();
            const recipe = document.getElementById('placeRecipe').value.trim();
            const x = parseInt(document.getElementById('placeX').value, 10) || 0;
            const y = parseInt(document.getElementById('placeY').value, 10) || 0;
            if (!name || !recipe) {
                showResult(false, 'Enter name and recipe');
                return;
            }
            postJSON('/operator/place', { name: name, recipe: recipe, x: x, y: y },
                document.getElementById('placeBtn'),
                function(data) { return 'Placed machine ' + data.machine_id; });
        }

        function connectMachines() {
            const from = parseInt(document.getElementById('connFrom').value, 10);
            const to = parseInt(document.getElementById('connTo').value, 10);
            if (isNaN(from) || isNaN(to)) {
                showResult(false, 'Enter machine IDs');
                return;
            }
            postJSON('/operator/connect', { from: from, to: to },
                document.getElementById('connBtn'),
                function() { return 'Connected ' + from + ' -> ' + to; });
        }
    </script>
</body>
</html>`

// uiHandler serves the operator UI HTML page.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(operatorUIHTML))
}
