package ir

import "fmt"

// Kind identifies the syntactic category of a node.
//
// The child layout of each kind is fixed; passes rely on it:
//
//	Program            statements...
//	FunctionDecl       Param..., Block            (name, async, generator, type)
//	FunctionExpr       Param..., Block            (name?, async, generator, type)
//	Arrow              Param..., Block|expr       (async, expression)
//	Param              target, default?           (rest, optional, type)
//	VariableDecl       VariableDeclarator...      (kind: var|let|const)
//	VariableDeclarator target, init?              (type)
//	ClassDecl/Expr     superclass?, members...    (name, extends)
//	Method             key?, Param..., Block      (name, kind, static, computed, async, generator)
//	ClassProperty      key?, init?                (name, static, computed, type)
//	ImportDecl         ImportSpecifier...         (source)
//	ImportSpecifier    -                          (imported, local)
//	ExportDecl         decl | expr | ExportSpecifier...   (form, source?)
//	ExportSpecifier    -                          (local, exported, binding?)
//	If                 test, consequent, alternate?
//	For                init, test, update, body   (form: classic)
//	For                left, right, body          (form: in|of, await)
//	Try                Block, Catch?, Block?      (finalizer present when last child is a Block)
//	Catch              target?, Block
//	Switch             discriminant, Case...
//	Case               test?, statements...       (default)
//	Template           String, (expr, String)...
//	Member             object, property?          (name when not computed, computed, optional)
//	Property           key?, value                (key, computed, shorthand, kind)
//	JSXElement         JSXAttribute|Spread..., children...   (name, self_closing)
//	JSXAttribute       value?                     (name)
//	EnumDecl           EnumMember...              (name, const)
//
// Missing optional parts of a classic for header are Empty nodes.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindProgram

	// Declarations
	KindFunctionDecl
	KindVariableDecl
	KindVariableDeclarator
	KindClassDecl
	KindMethod
	KindClassProperty
	KindImportDecl
	KindImportSpecifier
	KindExportDecl
	KindExportSpecifier
	KindParam

	// Statements
	KindBlock
	KindExprStmt
	KindIf
	KindFor
	KindWhile
	KindDoWhile
	KindReturn
	KindBreak
	KindContinue
	KindThrow
	KindTry
	KindCatch
	KindSwitch
	KindCase
	KindLabeled
	KindEmpty
	KindDebugger

	// Expressions
	KindIdentifier
	KindNumber
	KindString
	KindBoolean
	KindNull
	KindRegExp
	KindTemplate
	KindTaggedTemplate
	KindBinary
	KindLogical
	KindUnary
	KindUpdate
	KindAssign
	KindConditional
	KindCall
	KindNew
	KindMember
	KindArrow
	KindFunctionExpr
	KindClassExpr
	KindObject
	KindProperty
	KindSpread
	KindArray
	KindSequence
	KindThis
	KindSuper
	KindAwait
	KindYield
	KindAs
	KindNonNull

	// JSX
	KindJSXElement
	KindJSXFragment
	KindJSXAttribute
	KindJSXText
	KindJSXExpression

	// TypeScript declarations (bodies kept as source text)
	KindInterfaceDecl
	KindTypeAlias
	KindEnumDecl
	KindEnumMember

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:            "Invalid",
	KindProgram:            "Program",
	KindFunctionDecl:       "FunctionDecl",
	KindVariableDecl:       "VariableDecl",
	KindVariableDeclarator: "VariableDeclarator",
	KindClassDecl:          "ClassDecl",
	KindMethod:             "Method",
	KindClassProperty:      "ClassProperty",
	KindImportDecl:         "ImportDecl",
	KindImportSpecifier:    "ImportSpecifier",
	KindExportDecl:         "ExportDecl",
	KindExportSpecifier:    "ExportSpecifier",
	KindParam:              "Param",
	KindBlock:              "Block",
	KindExprStmt:           "ExprStmt",
	KindIf:                 "If",
	KindFor:                "For",
	KindWhile:              "While",
	KindDoWhile:            "DoWhile",
	KindReturn:             "Return",
	KindBreak:              "Break",
	KindContinue:           "Continue",
	KindThrow:              "Throw",
	KindTry:                "Try",
	KindCatch:              "Catch",
	KindSwitch:             "Switch",
	KindCase:               "Case",
	KindLabeled:            "Labeled",
	KindEmpty:              "Empty",
	KindDebugger:           "Debugger",
	KindIdentifier:         "Identifier",
	KindNumber:             "Number",
	KindString:             "String",
	KindBoolean:            "Boolean",
	KindNull:               "Null",
	KindRegExp:             "RegExp",
	KindTemplate:           "Template",
	KindTaggedTemplate:     "TaggedTemplate",
	KindBinary:             "Binary",
	KindLogical:            "Logical",
	KindUnary:              "Unary",
	KindUpdate:             "Update",
	KindAssign:             "Assign",
	KindConditional:        "Conditional",
	KindCall:               "Call",
	KindNew:                "New",
	KindMember:             "Member",
	KindArrow:              "Arrow",
	KindFunctionExpr:       "FunctionExpr",
	KindClassExpr:          "ClassExpr",
	KindObject:             "Object",
	KindProperty:           "Property",
	KindSpread:             "Spread",
	KindArray:              "Array",
	KindSequence:           "Sequence",
	KindThis:               "This",
	KindSuper:              "Super",
	KindAwait:              "Await",
	KindYield:              "Yield",
	KindAs:                 "As",
	KindNonNull:            "NonNull",
	KindJSXElement:         "JSXElement",
	KindJSXFragment:        "JSXFragment",
	KindJSXAttribute:       "JSXAttribute",
	KindJSXText:            "JSXText",
	KindJSXExpression:      "JSXExpression",
	KindInterfaceDecl:      "InterfaceDecl",
	KindTypeAlias:          "TypeAlias",
	KindEnumDecl:           "EnumDecl",
	KindEnumMember:         "EnumMember",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, kindCount)
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves a kind tag produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	k, ok := kindByName[s]
	if !ok || k == KindInvalid {
		return KindInvalid, fmt.Errorf("unknown node kind %q", s)
	}
	return k, nil
}

// IsLiteral reports whether nodes of this kind carry a primitive value.
func (k Kind) IsLiteral() bool {
	switch k {
	case KindNumber, KindString, KindBoolean, KindNull:
		return true
	}
	return false
}

// IsFunction reports whether nodes of this kind introduce a function scope.
func (k Kind) IsFunction() bool {
	switch k {
	case KindFunctionDecl, KindFunctionExpr, KindArrow, KindMethod:
		return true
	}
	return false
}

// Attribute keys. Kept in one place so every producer and consumer agrees
// on spelling.
const (
	AttrName        = "name"
	AttrValue       = "value"
	AttrRaw         = "raw"
	AttrOp          = "op"
	AttrKind        = "kind"
	AttrForm        = "form"
	AttrAsync       = "async"
	AttrGenerator   = "generator"
	AttrExpression  = "expression"
	AttrComputed    = "computed"
	AttrOptional    = "optional"
	AttrShorthand   = "shorthand"
	AttrPrefix      = "prefix"
	AttrStatic      = "static"
	AttrRest        = "rest"
	AttrDelegate    = "delegate"
	AttrAwait       = "await"
	AttrDefault     = "default"
	AttrExtends     = "extends"
	AttrKey         = "key"
	AttrLabel       = "label"
	AttrSource      = "source"
	AttrImported    = "imported"
	AttrLocal       = "local"
	AttrExported    = "exported"
	AttrBinding     = "binding"
	AttrType        = "type"
	AttrText        = "text"
	AttrPattern     = "pattern"
	AttrFlags       = "flags"
	AttrBigInt      = "bigint"
	AttrSelfClosing = "self_closing"
	AttrConst       = "const"
)

// Export forms stored under AttrForm on ExportDecl nodes.
const (
	ExportDeclaration = "declaration"
	ExportDefault     = "default"
	ExportNamed       = "named"
	ExportAll         = "all"
)
