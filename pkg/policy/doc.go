// Package policy provides Open Policy Agent (OPA) integration for Convoy.
//
// This package gates module invocations with Rego policies: before an
// executable runs against a host, every enabled policy's deny set is
// evaluated over the invocation input (executable path, arguments, target
// host, resolved host variables). It includes built-in safety policies and
// supports custom policy loading.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined safety policies
//
// # Usage
//
// Creating a policy engine and gating an invocation:
//
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.EvaluateInvocation(ctx, &policy.Input{
//	    Executable: "/usr/lib/convoy/modules/pkg.sh",
//	    Args:       map[string]interface{}{"name": "nginx", "state": "present"},
//	    Host:       "web1",
//	    Context:    &policy.Context{Environment: "production"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Allowed {
//	    // refuse to invoke the module
//	}
//
// # Writing Policies
//
// A policy is a Rego package exposing a deny set. Each deny result is either
// a message string or an object with message, severity, and host fields:
//
//	package convoy.policies.example
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.args.state == "absent"
//	    input.context.environment == "production"
//	    violation := {
//	        "message": "removals require a dry run in production",
//	        "severity": "critical",
//	        "host": input.host,
//	    }
//	}
//
// Violations of severity error or critical block the invocation; info and
// warning violations are reported but do not block.
package policy
