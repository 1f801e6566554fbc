// Package stixtest provides a small ATT&CK bundle for tests.
//
// The bundle covers the shapes the index builder has to handle: tactics and
// techniques linked through kill-chain phases, sub-techniques, mitigation and
// detection relationships, a revoked technique, a duplicate mitigation ID,
// dangling relationship references, unknown object types and an array entry
// that is not an object.
package stixtest

import (
	"github.com/zero-day-ai/attack-kb/stix"
)

// Well-known IDs in MiniJSON.
const (
	TacticExecution      = "TA0002"
	TacticInitialAccess  = "TA0001"
	TacticPersistence    = "TA0003"
	TechniqueInterpreter = "T1059"
	TechniqueAppleScript = "T1059.001"
	TechniquePhishing    = "T1566"
	TechniqueSpearAttach = "T1566.001"
	TechniquePhishInfo   = "T1598"
	TechniqueRevoked     = "T1086"
	MitigationExecPrev   = "M1038"
	MitigationAntivirus  = "M1049"
	MitigationTraining   = "M1017"
	DetectionScriptExec  = "DC0029"

	// DetectionProcessCreation has no ATT&CK external ID and is keyed by its
	// STIX ID.
	DetectionProcessCreation = "X-MITRE-DATA-COMPONENT--PROCESS-CREATION"
)

// MiniJSON is a reduced enterprise-attack bundle.
const MiniJSON = `{
  "type": "bundle",
  "id": "bundle--mini",
  "objects": [
    {
      "type": "x-mitre-tactic",
      "id": "x-mitre-tactic--initial-access",
      "name": "Initial Access",
      "description": "The adversary is trying to get into your network.",
      "x_mitre_shortname": "initial-access",
      "external_references": [{"source_name": "mitre-attack", "external_id": "TA0001", "url": "https://attack.mitre.org/tactics/TA0001"}]
    },
    {
      "type": "x-mitre-tactic",
      "id": "x-mitre-tactic--execution",
      "name": "Execution",
      "description": "The adversary is trying to run malicious code.",
      "x_mitre_shortname": "execution",
      "external_references": [{"source_name": "mitre-attack", "external_id": "TA0002", "url": "https://attack.mitre.org/tactics/TA0002"}]
    },
    {
      "type": "x-mitre-tactic",
      "id": "x-mitre-tactic--persistence",
      "name": "Persistence",
      "description": "The adversary is trying to maintain their foothold.",
      "x_mitre_shortname": "persistence",
      "external_references": [{"source_name": "mitre-attack", "external_id": "TA0003"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1059",
      "name": "Command and Scripting Interpreter",
      "description": "Adversaries may abuse command and script interpreters to execute commands, scripts, or binaries.",
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}],
      "x_mitre_platforms": ["Linux", "macOS", "Windows"],
      "x_mitre_detection": "Monitor command-line arguments for script execution.",
      "external_references": [
        {"source_name": "mitre-attack", "external_id": "T1059", "url": "https://attack.mitre.org/techniques/T1059"},
        {"source_name": "Example Report", "url": "https://example.com/report"}
      ]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1059-001",
      "name": "AppleScript",
      "description": "Adversaries may abuse AppleScript for execution.",
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "execution"}],
      "x_mitre_platforms": ["macOS"],
      "x_mitre_is_subtechnique": true,
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1059.001", "url": "https://attack.mitre.org/techniques/T1059/001"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1598",
      "name": "Phishing for  Information",
      "description": "Adversaries may send phishing messages to elicit sensitive information.",
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "reconnaissance"}],
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1598"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1566",
      "name": "Phishing",
      "description": "Adversaries may send phishing messages to gain access to victim systems.",
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "initial-access"}],
      "x_mitre_platforms": ["Linux", "macOS", "Windows"],
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1566"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1566-001",
      "name": "Spearphishing Attachment",
      "description": "Adversaries may send spearphishing emails with a malicious attachment.",
      "kill_chain_phases": [{"kill_chain_name": "mitre-attack", "phase_name": "initial-access"}],
      "x_mitre_is_subtechnique": true,
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1566.001"}]
    },
    {
      "type": "attack-pattern",
      "id": "attack-pattern--t1086",
      "name": "PowerShell",
      "description": "Revoked in favour of T1059.001.",
      "revoked": true,
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1086"}]
    },
    {
      "type": "course-of-action",
      "id": "course-of-action--m1038",
      "name": "Execution Prevention",
      "description": "Block execution of code on a system through application control.",
      "external_references": [{"source_name": "mitre-attack", "external_id": "M1038"}]
    },
    {
      "type": "course-of-action",
      "id": "course-of-action--m1049-old",
      "name": "Antivirus",
      "description": "Superseded entry.",
      "external_references": [{"source_name": "mitre-attack", "external_id": "M1049"}]
    },
    {
      "type": "course-of-action",
      "id": "course-of-action--m1017",
      "name": "User Training",
      "description": "Train users to be aware of access or manipulation attempts.",
      "external_references": [{"source_name": "mitre-attack", "external_id": "M1017"}]
    },
    {
      "type": "course-of-action",
      "id": "course-of-action--m1049",
      "name": "Antivirus/Antimalware",
      "description": "Use signatures or heuristics to detect malicious software.",
      "external_references": [{"source_name": "mitre-attack", "external_id": "M1049"}]
    },
    {
      "type": "x-mitre-data-component",
      "id": "x-mitre-data-component--script-execution",
      "name": "Script Execution",
      "description": "The execution of a text file that contains code.",
      "external_references": [{"source_name": "mitre-attack", "external_id": "DC0029"}]
    },
    {
      "type": "x-mitre-data-component",
      "id": "x-mitre-data-component--process-creation",
      "name": "Process Creation",
      "description": "The initial construction of an executable managed by the OS."
    },
    {"type": "identity", "id": "identity--mitre", "name": "The MITRE Corporation"},
    {"type": "marking-definition", "id": "marking-definition--copyright"},
    42,
    {"type": "relationship", "id": "relationship--1", "relationship_type": "subtechnique-of", "source_ref": "attack-pattern--t1059-001", "target_ref": "attack-pattern--t1059"},
    {"type": "relationship", "id": "relationship--2", "relationship_type": "subtechnique-of", "source_ref": "attack-pattern--t1566-001", "target_ref": "attack-pattern--t1566"},
    {"type": "relationship", "id": "relationship--3", "relationship_type": "mitigates", "source_ref": "course-of-action--m1038", "target_ref": "attack-pattern--t1059-001"},
    {"type": "relationship", "id": "relationship--4", "relationship_type": "mitigates", "source_ref": "course-of-action--m1038", "target_ref": "attack-pattern--t1059"},
    {"type": "relationship", "id": "relationship--5", "relationship_type": "mitigates", "source_ref": "course-of-action--m1017", "target_ref": "attack-pattern--t1566"},
    {"type": "relationship", "id": "relationship--6", "relationship_type": "mitigates", "source_ref": "course-of-action--m1017", "target_ref": "attack-pattern--t1566-001"},
    {"type": "relationship", "id": "relationship--7", "relationship_type": "mitigates", "source_ref": "course-of-action--m1049-old", "target_ref": "attack-pattern--t1566-001"},
    {"type": "relationship", "id": "relationship--8", "relationship_type": "mitigates", "source_ref": "course-of-action--m1049", "target_ref": "attack-pattern--t1566-001"},
    {"type": "relationship", "id": "relationship--9", "relationship_type": "mitigates", "source_ref": "course-of-action--m9999", "target_ref": "attack-pattern--t1059-001"},
    {"type": "relationship", "id": "relationship--10", "relationship_type": "mitigates", "source_ref": "course-of-action--m1038", "target_ref": "attack-pattern--t1086"},
    {"type": "relationship", "id": "relationship--11", "relationship_type": "detects", "source_ref": "x-mitre-data-component--script-execution", "target_ref": "attack-pattern--t1059-001"},
    {"type": "relationship", "id": "relationship--12", "relationship_type": "detects", "source_ref": "x-mitre-data-component--process-creation", "target_ref": "attack-pattern--t1059-001"},
    {"type": "relationship", "id": "relationship--13", "relationship_type": "detects", "source_ref": "x-mitre-data-component--script-execution", "target_ref": "attack-pattern--missing"},
    {"type": "relationship", "id": "relationship--14", "relationship_type": "uses", "source_ref": "intrusion-set--apt", "target_ref": "attack-pattern--t1566"}
  ]
}`

// MiniBundle parses MiniJSON. It panics if the fixture is broken.
func MiniBundle() *stix.Bundle {
	b, err := stix.Parse([]byte(MiniJSON))
	if err != nil {
		panic("stixtest: fixture does not parse: " + err.Error())
	}
	return b
}
