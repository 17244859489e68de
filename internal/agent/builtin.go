// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import "github.com/jeranaias/sphere-client/internal/model"

// GroupID is the board pseudo-agent. Messages addressed to it are routed by
// the backend.
const GroupID = "group-chat"

var builtins = []model.Agent{
	{
		ID:           GroupID,
		Name:         "Junta Directiva",
		Role:         model.RoleSystem,
		Avatar:       "🏛️",
		Description:  "Orquestación completa - El Router decide quién responde.",
		Color:        "text-text-secondary",
		HexColor:     "#00F0C8",
		Online:       true,
		Capabilities: []string{"Análisis Estratégico", "Decisiones Ejecutivas", "Coordinación Multi-agente"},
	},
	{
		ID:           "ceo-1",
		Name:         "Oberon (CEO)",
		Role:         model.RoleCEO,
		Avatar:       "O",
		Description:  "Visión estratégica y liderazgo ejecutivo.",
		Color:        "text-agent-ceo",
		HexColor:     "#8A63D2",
		Online:       true,
		Capabilities: []string{"Estrategia Corporativa", "Toma de Decisiones", "Visión de Negocio"},
	},
	{
		ID:           "cto-1",
		Name:         "Nexus (CTO)",
		Role:         model.RoleCTO,
		Avatar:       "N",
		Description:  "Experto en Arquitectura Cloud y DevOps.",
		Color:        "text-agent-cto",
		HexColor:     "#00C1B3",
		Online:       true,
		Capabilities: []string{"Cloud Architecture", "DevOps", "Seguridad Técnica"},
	},
	{
		ID:           "cmo-1",
		Name:         "Vortex (CMO)",
		Role:         model.RoleCMO,
		Avatar:       "V",
		Description:  "Estratega de Mercado y Posicionamiento.",
		Color:        "text-agent-cmo",
		HexColor:     "#E34A95",
		Online:       true,
		Capabilities: []string{"Marketing Digital", "Branding", "Growth Hacking"},
	},
	{
		ID:           "cfo-1",
		Name:         "Ledger (CFO)",
		Role:         model.RoleCFO,
		Avatar:       "L",
		Description:  "Auditor Financiero y Gestión de Riesgos.",
		Color:        "text-agent-cfo",
		HexColor:     "#6B8AFD",
		Online:       true,
		Capabilities: []string{"Análisis Financiero", "Gestión de Riesgos", "Proyecciones"},
	},
}

// Greetings are synthesized locally so opening a thread costs no tokens.
var greetings = map[string]string{
	GroupID: "Bienvenido a la **Junta Directiva** de SPHERE. El Router analizará tu consulta y delegará al agente más adecuado.",
	"ceo-1": "¡Hola! Soy **Oberon**, tu CEO estratégico. Estoy aquí para ofrecerte visión de alto nivel, decisiones ejecutivas y liderazgo empresarial. ¿En qué puedo ayudarte?",
	"cto-1": "¡Saludos! Soy **Nexus**, tu CTO. Mi expertise incluye arquitectura cloud, DevOps, seguridad técnica y decisiones de infraestructura. ¿Cuál es tu desafío técnico?",
	"cmo-1": "¡Bienvenido! Soy **Vortex**, tu CMO. Me especializo en estrategia de marketing, branding, growth hacking y posicionamiento de mercado. ¿Qué necesitas impulsar?",
	"cfo-1": "¡Hola! Soy **Ledger**, tu CFO. Puedo ayudarte con análisis financiero, gestión de riesgos, proyecciones y optimización de costes. ¿Qué números analizamos?",
}

// Builtins returns a copy of the built-in agents in their original state.
func Builtins() []model.Agent {
	out := make([]model.Agent, len(builtins))
	for i, a := range builtins {
		out[i] = a.Clone()
	}
	return out
}
