package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"time"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// GoParser implements Parser over go/ast, combining symbol extraction,
// DDD pattern tagging, and symbol-to-chunk mapping into a single EmitChunks
// call. It holds no per-file state: a fresh token.FileSet is created
// per call, so one GoParser is safely shared across the worker pool.
type GoParser struct{}

// NewGoParser returns the Go language variant.
func NewGoParser() *GoParser { return &GoParser{} }

func (g *GoParser) EmitChunks(path string, content []byte) ([]*types.Chunk, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		// parser.ParseFile can return a partial AST alongside a syntax
		// error. A syntax error always short-circuits here, returning
		// the single invalid-quality root chunk, rather than indexing
		// whatever declarations did parse.
		return []*types.Chunk{invalidRootChunk(path, string(content))}, nil
	}

	lines := strings.Split(string(content), "\n")
	packageName := ""
	if file.Name != nil {
		packageName = file.Name.Name
	}

	ex := &goExtractor{fset: fset, packageName: packageName}
	ast.Inspect(file, ex.visit)

	now := time.Now()
	var chunks []*types.Chunk

	// First pass: emit class (type) chunks and collect receiver→class
	// chunk ID so methods can set ParentID.
	classIDByReceiver := make(map[string]string)
	for _, ts := range ex.types {
		chunk := g.typeChunk(path, lines, ts, now)
		classIDByReceiver[ts.name] = chunk.ID
		chunks = append(chunks, chunk)
	}

	// Second pass: functions and methods.
	for _, fn := range ex.funcs {
		chunk := g.funcChunk(path, lines, fn, now)
		if fn.receiver != "" {
			if classID, ok := classIDByReceiver[fn.receiver]; ok {
				chunk.ParentID = classID
			}
		}
		chunks = append(chunks, chunk)
	}

	// Third pass: fill in each class chunk's skeleton now that its
	// methods (if any) are known.
	methodsByReceiver := make(map[string][]string)
	for _, fn := range ex.funcs {
		if fn.receiver != "" {
			methodsByReceiver[fn.receiver] = append(methodsByReceiver[fn.receiver], fn.signature)
		}
	}
	for i, ts := range ex.types {
		methods := methodsByReceiver[ts.name]
		chunks[i].Skeleton = buildSkeleton(ts, methods)
		chunks[i].Quality = EstimateQuality(chunks[i].Content, chunks[i].Skeleton, types.KindClass, len(methods))
		chunks[i].DDD = detectGoDDDTags(ts.name, ts.declKind)
	}

	if len(chunks) == 0 {
		chunks = append(chunks, rootFileChunk(path, string(content), types.ParseOK))
	}
	return chunks, nil
}

func (g *GoParser) ExtractDocstring(content []byte, startLine, endLine int) string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil || file == nil {
		return ""
	}
	var doc string
	ast.Inspect(file, func(n ast.Node) bool {
		switch d := n.(type) {
		case *ast.FuncDecl:
			if fset.Position(d.Pos()).Line == startLine && d.Doc != nil {
				doc = strings.TrimSpace(d.Doc.Text())
			}
		case *ast.GenDecl:
			if fset.Position(d.Pos()).Line == startLine && d.Doc != nil {
				doc = strings.TrimSpace(d.Doc.Text())
			}
		}
		return true
	})
	return doc
}

func (g *GoParser) EstimateQuality(body string, kind types.ChunkKind) types.Quality {
	lines := strings.SplitN(body, "\n", 2)
	sig := ""
	if len(lines) > 0 {
		sig = lines[0]
	}
	return EstimateQuality(body, sig, kind, 0)
}

// goType is one struct/interface/type declaration collected during the
// AST walk.
type goType struct {
	name      string
	declKind  string // "struct", "interface", "type"
	doc       string
	signature string
	start     int
	end       int
}

// goFunc is one function or method declaration.
type goFunc struct {
	name      string
	receiver  string
	doc       string
	signature string
	start     int
	end       int
}

type goExtractor struct {
	fset        *token.FileSet
	packageName string
	types       []goType
	funcs       []goFunc
}

func (e *goExtractor) visit(n ast.Node) bool {
	switch d := n.(type) {
	case *ast.FuncDecl:
		e.visitFunc(d)
	case *ast.GenDecl:
		e.visitGenDecl(d)
	}
	return true
}

func (e *goExtractor) visitFunc(d *ast.FuncDecl) {
	fn := goFunc{
		name:      d.Name.Name,
		doc:       docText(d.Doc),
		signature: funcSignature(d),
		start:     e.fset.Position(d.Pos()).Line,
		end:       e.fset.Position(d.End()).Line,
	}
	if d.Recv != nil && len(d.Recv.List) > 0 {
		fn.receiver = receiverTypeName(d.Recv.List[0].Type)
	}
	e.funcs = append(e.funcs, fn)
}

func (e *goExtractor) visitGenDecl(d *ast.GenDecl) {
	for _, spec := range d.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		gt := goType{
			name:  ts.Name.Name,
			doc:   docText(d.Doc),
			start: e.fset.Position(ts.Pos()).Line,
			end:   e.fset.Position(ts.End()).Line,
		}
		switch t := ts.Type.(type) {
		case *ast.StructType:
			gt.declKind = "struct"
			n := 0
			if t.Fields != nil {
				n = t.Fields.NumFields()
			}
			gt.signature = fmt.Sprintf("type %s struct { ... } // %d fields", ts.Name.Name, n)
		case *ast.InterfaceType:
			gt.declKind = "interface"
			n := 0
			if t.Methods != nil {
				n = t.Methods.NumFields()
			}
			gt.signature = fmt.Sprintf("type %s interface { ... } // %d methods", ts.Name.Name, n)
		default:
			gt.declKind = "type"
			gt.signature = "type " + ts.Name.Name
		}
		e.types = append(e.types, gt)
	}
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func funcSignature(d *ast.FuncDecl) string {
	var sig strings.Builder
	sig.WriteString("func ")
	if d.Recv != nil && len(d.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(receiverTypeName(d.Recv.List[0].Type))
		sig.WriteString(") ")
	}
	sig.WriteString(d.Name.Name)
	sig.WriteString("(")
	sig.WriteString(fieldListString(d.Type.Params))
	sig.WriteString(")")
	if results := fieldListString(d.Type.Results); results != "" {
		sig.WriteString(" " + results)
	}
	return sig.String()
}

func fieldListString(fl *ast.FieldList) string {
	if fl == nil || len(fl.List) == 0 {
		return ""
	}
	var parts []string
	for _, f := range fl.List {
		parts = append(parts, exprTypeString(f.Type))
	}
	return strings.Join(parts, ", ")
}

func exprTypeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprTypeString(t.X)
	case *ast.ArrayType:
		return "[]" + exprTypeString(t.Elt)
	case *ast.SelectorExpr:
		return exprTypeString(t.X) + "." + t.Sel.Name
	default:
		return "..."
	}
}

func (g *GoParser) typeChunk(path string, lines []string, ts goType, now time.Time) *types.Chunk {
	content := sliceLines(lines, ts.start, ts.end)
	id := types.DeriveID(path, ts.start, ts.end, types.KindClass)
	c := &types.Chunk{
		ID:        id,
		FilePath:  path,
		StartLine: ts.start,
		EndLine:   ts.end,
		Kind:      types.KindClass,
		Name:      ts.name,
		Language:  "go",
		Content:   content,
		Docstring: ts.doc,
		ParseQuality: types.ParseOK,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.ComputeContentHash()
	return c
}

func (g *GoParser) funcChunk(path string, lines []string, fn goFunc, now time.Time) *types.Chunk {
	content := sliceLines(lines, fn.start, fn.end)
	kind := types.KindFunction
	if fn.receiver != "" {
		kind = types.KindMethod
	}
	id := types.DeriveID(path, fn.start, fn.end, kind)
	c := &types.Chunk{
		ID:           id,
		FilePath:     path,
		StartLine:    fn.start,
		EndLine:      fn.end,
		Kind:         kind,
		Name:         fn.name,
		Language:     "go",
		Content:      content,
		Docstring:    fn.doc,
		ParseQuality: types.ParseOK,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.ComputeContentHash()
	c.Quality = EstimateQuality(content, fn.signature, kind, 0)
	return c
}

func buildSkeleton(ts goType, methodSignatures []string) string {
	var b strings.Builder
	b.WriteString(ts.signature)
	if ts.doc != "" {
		b.WriteString("\n// " + strings.ReplaceAll(ts.doc, "\n", "\n// "))
	}
	for _, m := range methodSignatures {
		b.WriteString("\n" + m)
	}
	return b.String()
}

func sliceLines(lines []string, start, end int) string {
	if start <= 0 {
		start = 1
	}
	if start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

func rootFileChunk(path, content string, quality types.ParseQuality) *types.Chunk {
	lines := strings.Split(content, "\n")
	id := types.DeriveID(path, 1, len(lines), types.KindFileChunk)
	now := time.Now()
	c := &types.Chunk{
		ID:           id,
		FilePath:     path,
		StartLine:    1,
		EndLine:      len(lines),
		Kind:         types.KindFileChunk,
		Name:         path,
		Content:      content,
		ParseQuality: quality,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.ComputeContentHash()
	return c
}

func invalidRootChunk(path, content string) *types.Chunk {
	return rootFileChunk(path, content, types.ParseInvalid)
}

// detectGoDDDTags applies naming-convention detection over a type's
// declared name and kind.
func detectGoDDDTags(name, declKind string) types.DDDTags {
	if declKind != "struct" && declKind != "interface" && declKind != "type" {
		return types.DDDTags{}
	}
	var d types.DDDTags
	switch {
	case strings.HasSuffix(name, "Aggregate"), strings.HasSuffix(name, "AggregateRoot"):
		d.IsAggregateRoot = true
		d.IsEntity = true
	}
	if !d.IsEntity {
		if strings.HasSuffix(name, "Entity") {
			d.IsEntity = true
		} else {
			for _, indicator := range []string{"Order", "User", "Product", "Account", "Customer", "Item"} {
				if strings.Contains(name, indicator) &&
					!strings.HasSuffix(name, "Service") &&
					!strings.HasSuffix(name, "Repository") &&
					!strings.HasSuffix(name, "Handler") {
					d.IsEntity = true
					break
				}
			}
		}
	}
	if strings.HasSuffix(name, "VO") || strings.HasSuffix(name, "ValueObject") {
		d.IsValueObject = true
	}
	if strings.HasSuffix(name, "Repository") || strings.HasSuffix(name, "Repo") {
		d.IsRepository = true
	}
	if strings.HasSuffix(name, "Service") {
		d.IsService = true
	}
	if strings.HasSuffix(name, "Command") || strings.HasSuffix(name, "Cmd") {
		d.IsCommand = true
	}
	if strings.HasSuffix(name, "Query") {
		d.IsQuery = true
	}
	if strings.HasSuffix(name, "Handler") {
		d.IsHandler = true
	}
	return d
}
